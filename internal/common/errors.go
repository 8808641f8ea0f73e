// Package common defines the error taxonomy and small helpers shared by the
// identity, envelope and relay layers of CRIM. Callers should use errors.Is
// to match the sentinel values; wrapped causes do not affect matching.
package common

import "fmt"

// Kind groups errors by who is expected to react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindCrypto        Kind = "crypto"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindStore         Kind = "store"
)

// Error is a typed core error. Reason identifies the concrete failure inside
// a Kind; Cause carries the underlying error, if any, for logs and Unwrap.
//
// Messages never include key material, ciphertext or passwords.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind and Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Wrap returns a copy of the sentinel err carrying cause. If err is not an
// *Error, cause is wrapped with fmt.Errorf instead.
func Wrap(err error, cause error) error {
	e, ok := err.(*Error)
	if !ok {
		return fmt.Errorf("%w: %v", err, cause)
	}
	return &Error{Kind: e.Kind, Reason: e.Reason, Cause: cause}
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	// Validation errors.
	ErrDuplicateUsername  = newError(KindValidation, "duplicate username")
	ErrUnknownParticipant = newError(KindValidation, "unknown participant")
	ErrInvalidUsername    = newError(KindValidation, "invalid username")
	ErrWeakPassword       = newError(KindValidation, "weak password")
	ErrNoParticipants     = newError(KindValidation, "no participants")
	ErrNotAFriend         = newError(KindValidation, "not a friend")
	ErrAlreadyFriends     = newError(KindValidation, "already friends")
	ErrSelfFriend         = newError(KindValidation, "cannot befriend yourself")

	// Auth errors. Unknown user and wrong password both map to ErrInvalidCredentials.
	ErrInvalidCredentials = newError(KindAuth, "invalid username or password")
	ErrInvalidSession     = newError(KindAuth, "invalid session")

	// Crypto errors.
	ErrKeyGenFailure      = newError(KindCrypto, "key generation failed")
	ErrKeyUnwrapFailed    = newError(KindCrypto, "key unwrap failed")
	ErrEncryptFailure     = newError(KindCrypto, "encrypt failed")
	ErrDecryptFailure     = newError(KindCrypto, "decrypt failed")
	ErrKeyVaultCorruption = newError(KindCrypto, "key vault corruption")
	ErrSessionSigning     = newError(KindCrypto, "session signing failed")

	// Not-found errors.
	ErrUnknownConversation = newError(KindNotFound, "unknown conversation")
	ErrNoActiveSession     = newError(KindNotFound, "no active session")
	ErrNotFound            = newError(KindNotFound, "not found")

	// Authorization errors.
	ErrNotAParticipant = newError(KindAuthorization, "not a participant")

	// Store errors.
	ErrStoreUnavailable = newError(KindStore, "store unavailable")
	ErrStoreConflict    = newError(KindStore, "store conflict")
)
