package auth

// Package auth contains simple hand-written test doubles for auth and OTP
// ports. These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider          = (*MockAuthProvider)(nil)
	_ ports.PasswordAuthenticator = (*MockPasswordAuthenticator)(nil)
	_ ports.DirectoryClient       = (*MockDirectoryClient)(nil)
	_ ports.SessionStore          = (*MemorySessionStore)(nil)
	_ ports.ChallengeStore        = (*MemoryChallengeStore)(nil)
	_ ports.CodeSender            = (*MockCodeSender)(nil)
	_ ports.AuditRecorder         = (*MemoryAuditRecorder)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context) (ports.BeginResult, error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	DefaultUser domainauth.Identity

	// Internal state tracking for deterministic behavior
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL: "https://mock-idp/auth",
		DefaultUser: domainauth.Identity{
			UserID:      "mock-user-1",
			Email:       "mock.user@institute.edu",
			DisplayName: "Mock User",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context) (ports.BeginResult, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}

	m.callCount++
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}

	return ports.BeginResult{
		AuthURL:      authURL,
		State:        fmt.Sprintf("state-%d", m.callCount),
		Nonce:        fmt.Sprintf("nonce-%d", m.callCount),
		PKCEVerifier: fmt.Sprintf("verifier-%d", m.callCount),
	}, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	// Return a copy of the default user with a fresh expiration time
	user := m.DefaultUser
	if user.UserID == "" {
		user = domainauth.Identity{
			UserID:      "mock-user-1",
			Email:       "mock.user@institute.edu",
			DisplayName: "Mock User",
		}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)

	return user, nil
}

// MockPasswordAuthenticator verifies credentials against a fixed table.
type MockPasswordAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, email, password string) (domainauth.Identity, error)

	// Accounts maps email to password; a hit returns Identities[email] or a
	// minimal identity built from the email.
	Accounts   map[string]string
	Identities map[string]domainauth.Identity
}

func (m *MockPasswordAuthenticator) Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	want, ok := m.Accounts[email]
	if !ok || want != password {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}
	if identity, ok := m.Identities[email]; ok {
		return identity, nil
	}
	return domainauth.Identity{
		UserID:    email,
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

// MockDirectoryClient serves directory records from a map. Unknown subjects
// get an empty record, mirroring the real client's missing-entry behavior.
type MockDirectoryClient struct {
	LookupFunc func(ctx context.Context, subjectID string) (ports.DirectoryRecord, error)

	Records map[string]ports.DirectoryRecord
	// Err, when set, is returned for every lookup (simulates an outage).
	Err error
}

func (m *MockDirectoryClient) Lookup(ctx context.Context, subjectID string) (ports.DirectoryRecord, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, subjectID)
	}
	if m.Err != nil {
		return ports.DirectoryRecord{}, m.Err
	}
	return m.Records[subjectID], nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// MemoryChallengeStore is an in-memory challenge store with the same outcome
// semantics as the Redis adapter: one live challenge per phone, read-time
// expiry, and an atomic attempt budget.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]domainotp.Challenge

	// Now is swappable for expiry tests; defaults to time.Now.
	Now func() time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]domainotp.Challenge),
		Now:        time.Now,
	}
}

func (m *MemoryChallengeStore) Replace(_ context.Context, ch domainotp.Challenge) error {
	if ch.Phone == "" {
		return errors.New("challenge phone cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[ch.Phone] = ch
	return nil
}

func (m *MemoryChallengeStore) Consume(_ context.Context, phone, submitted string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.challenges[phone]
	if !ok {
		return ports.ErrChallengeNotFound
	}
	if ch.Expired(m.Now()) {
		delete(m.challenges, phone)
		return ports.ErrChallengeNotFound
	}
	if ch.Code == submitted {
		delete(m.challenges, phone)
		return nil
	}
	ch.AttemptsRemaining--
	if ch.AttemptsRemaining <= 0 {
		delete(m.challenges, phone)
		return ports.ErrAttemptsExhausted
	}
	m.challenges[phone] = ch
	return ports.ErrCodeMismatch
}

func (m *MemoryChallengeStore) Delete(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, phone)
	return nil
}

// Live returns the live challenge for a phone, for test assertions.
func (m *MemoryChallengeStore) Live(phone string) (domainotp.Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[phone]
	return ch, ok
}

// MockCodeSender records delivered codes instead of reaching a gateway.
type MockCodeSender struct {
	SendFunc func(ctx context.Context, phone, code string) error

	mu    sync.Mutex
	sends []SentCode
	// Err, when set, fails every send.
	Err error
}

// SentCode is one recorded delivery.
type SentCode struct {
	Phone string
	Code  string
}

func (m *MockCodeSender) Send(ctx context.Context, phone, code string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, phone, code)
	}
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, SentCode{Phone: phone, Code: code})
	return nil
}

// Sent returns all recorded deliveries.
func (m *MockCodeSender) Sent() []SentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentCode, len(m.sends))
	copy(out, m.sends)
	return out
}

// LastCode returns the most recently delivered code for a phone, if any.
func (m *MockCodeSender) LastCode(phone string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sends) - 1; i >= 0; i-- {
		if m.sends[i].Phone == phone {
			return m.sends[i].Code, true
		}
	}
	return "", false
}

// MemoryAuditRecorder collects audit events for assertions.
type MemoryAuditRecorder struct {
	mu     sync.Mutex
	events []ports.AuditEvent
	// Err, when set, fails every record call.
	Err error
}

func (m *MemoryAuditRecorder) Record(_ context.Context, event ports.AuditEvent) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns all recorded audit events.
func (m *MemoryAuditRecorder) Events() []ports.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// ErrNotFound is returned by mocks when an entity is not present.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var ErrNotFound error = notFoundError{}
