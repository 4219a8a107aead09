package auth

import "strings"

// Role resolution degrades gracefully: the upstream directory's role data is
// not guaranteed complete, so after checking declared role tokens we fall
// back to naming-convention heuristics and finally to the faculty default.
// The tradeoff is deliberate: a missing directory entry must not lock a
// legitimate account out.

// Token sets recognized in directory role entries. Matching is
// case-insensitive and treats '-', ' ' and '_' as equivalent.
var (
	administratorTokens = []string{"admin", "administrator", "superuser", "sysadmin"}
	departmentHeadTokens = []string{
		"hod", "head_of_department", "department_head", "dept_head",
	}
	facultyTokens = []string{"faculty", "teacher", "professor", "prof", "lecturer"}
	staffTokens   = []string{"staff", "office_staff", "clerk"}
)

// Marker tokens used by the naming-convention fallbacks.
const (
	departmentHeadMarker = "hod"
	facultyMarker        = "faculty"
	professorMarker      = "prof"
	staffMarker          = "staff"
)

// ResolveInput groups the inputs to Resolve.
type ResolveInput struct {
	SubjectID     string
	DeclaredRoles []string
	Email         string
	DisplayName   string
	// BootstrapAdmins are subject identifiers that are administrators
	// regardless of directory content (break-glass accounts).
	BootstrapAdmins []string
}

// Resolve maps the declared directory roles and identity naming hints to
// exactly one canonical Role. It is pure and deterministic: the same input
// always yields the same role, and it never fails.
//
// Precedence, first match wins:
//  1. administrator: declared admin token, or bootstrap subject ID
//  2. department_head: declared HoD token, or email/display name starting with "hod"
//  3. faculty: declared faculty token, or email/name containing "faculty"/"prof"
//  4. staff: declared staff token, or email containing "staff"
//  5. default: faculty
func Resolve(in ResolveInput) Role {
	declared := normalizeTokens(in.DeclaredRoles)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.ToLower(strings.TrimSpace(in.DisplayName))

	if containsAny(declared, administratorTokens) || isBootstrapAdmin(in.SubjectID, in.BootstrapAdmins) {
		return RoleAdministrator
	}

	if containsAny(declared, departmentHeadTokens) ||
		strings.HasPrefix(email, departmentHeadMarker) ||
		strings.HasPrefix(name, departmentHeadMarker) {
		return RoleDepartmentHead
	}

	if containsAny(declared, facultyTokens) ||
		strings.Contains(email, facultyMarker) || strings.Contains(email, professorMarker) ||
		strings.Contains(name, facultyMarker) || strings.Contains(name, professorMarker) {
		return RoleFaculty
	}

	if containsAny(declared, staffTokens) || strings.Contains(email, staffMarker) {
		return RoleStaff
	}

	return RoleFaculty
}

// ResolveRole resolves a role from declared directory roles and naming hints
// without the bootstrap super-user list. Convenience wrapper around Resolve.
func ResolveRole(declaredRoles []string, email, displayName string) Role {
	return Resolve(ResolveInput{
		DeclaredRoles: declaredRoles,
		Email:         email,
		DisplayName:   displayName,
	})
}

func isBootstrapAdmin(subjectID string, bootstrap []string) bool {
	if subjectID == "" {
		return false
	}
	for _, id := range bootstrap {
		if strings.EqualFold(strings.TrimSpace(id), subjectID) {
			return true
		}
	}
	return false
}

// normalizeTokens lowercases declared tokens and canonicalizes separators so
// "Head-Of-Department" and "head of department" both match "head_of_department".
func normalizeTokens(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.ReplaceAll(t, "-", "_")
		t = strings.ReplaceAll(t, " ", "_")
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

func containsAny(set map[string]struct{}, tokens []string) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
