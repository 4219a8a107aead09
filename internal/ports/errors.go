package ports

import "errors"

// Sign-in flow errors shared across the port boundary. Adapters map raw
// transport failures into these classes; nothing above the service layer
// ever sees a provider or directory transport error directly.
var (
	// ErrAccessDenied means the identity provider rejected the
	// authorization (consent declined, account disabled upstream, token or
	// user-info step refused). Surfaced verbatim; not retried automatically.
	ErrAccessDenied = errors.New("access denied by identity provider")

	// ErrCallbackFailed means the federated exchange broke for transport or
	// state/nonce-mismatch reasons. Safe to retry by restarting sign-in.
	ErrCallbackFailed = errors.New("login callback failed")

	// ErrInvalidCredentials is the uniform local sign-in failure. It
	// deliberately does not distinguish wrong password from unknown user.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDirectoryUnavailable means the directory lookup failed. Non-fatal:
	// sign-in proceeds with degraded claims.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)
