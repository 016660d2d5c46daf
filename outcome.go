package steamauth

import "fmt"

// Error codes reported in failure outcomes. The host can branch on these
// to decide what (localized) message to show the user.
const (
	ErrCodeProtocolFailure = "protocol_failure" // provider cancelled, failed, or the exchange itself errored
	ErrCodeIdentityParse   = "identity_parse"   // verified identity URL had no extractable identifier
	ErrCodeProfileFetch    = "profile_fetch"    // profile API unreachable or returned garbage (non-fatal)
	ErrCodeStorage         = "storage"          // repository write failed (fatal to this attempt)
	ErrCodeConfig          = "config"           // invalid credential issuer configuration
)

// AuthError is a typed authentication error with a stable code.
type AuthError struct {
	Code    string
	Message string
	Err     error // wrapped cause, if any
}

func NewAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// WrapAuthError attaches a cause to a coded error.
func WrapAuthError(code, message string, err error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Status of an authentication outcome.
type Status int

const (
	StatusFailure Status = iota
	StatusSuccess
)

// Outcome is the result of one authentication attempt. It is returned by
// value to the host and never persisted; on success the host is expected to
// create or log in the matching local account and then call FinalizeLogin.
type Outcome struct {
	Status  Status
	SteamID SteamID

	// Populated on success.
	Username string
	Email    string
	FullName string

	// Populated only when a provisional account was synthesized during this
	// attempt: Password is a bcrypt hash suitable for storage, PasswordClear
	// is the one-time clear value for display or email. The host should
	// force a credential reset on first real use.
	Password      string
	PasswordClear string

	// FirstLogin reports that this identity had never been seen before.
	FirstLogin bool

	// Populated on failure.
	Err *AuthError
}

// Success reports whether the attempt authenticated an identity.
func (o *Outcome) Success() bool { return o != nil && o.Status == StatusSuccess }

// Failure builds a failure outcome from a coded error.
func Failure(err *AuthError) *Outcome {
	return &Outcome{Status: StatusFailure, Err: err}
}
