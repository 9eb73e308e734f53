package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled        = "ACCOUNT_DISABLED"
	TextCodeTooManyRequests        = "TOO_MANY_REQUESTS"
	TextCodeReauthenticationFailed = "REAUTHENTICATION_FAILED"
	TextCodeNotAuthenticated       = "NOT_AUTHENTICATED"
	TextCodeForbidden              = "FORBIDDEN"
	TextCodeConsistency            = "CONSISTENCY_ERROR"
	TextCodeOrphanedIdentity       = "ORPHANED_IDENTITY"
	TextCodeInvalidRole            = "INVALID_ROLE"
	TextCodeFieldNotPermitted      = "FIELD_NOT_PERMITTED"
	TextCodeInvalidInput           = "INVALID_INPUT"
	TextCodeInvalidTransition      = "INVALID_SESSION_TRANSITION"
	TextCodeProfileResolution      = "PROFILE_RESOLUTION_FAILED"
	TextCodeProfileNotFound        = "PROFILE_NOT_FOUND"
	TextCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	TextCodeEmailInUse             = "EMAIL_IN_USE"
	TextCodePasswordResetRequest   = "PASSWORD_RESET_REQUEST_FAILED"
	TextCodeInvalidToken           = "INVALID_TOKEN"
)

// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled is returned when the provider or the profile marks the account inactive.
var ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrTooManyRequests is returned while an account is cooling down after failed attempts.
var ErrTooManyRequests = goerrors.New("too many failed attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests).
	WithCode(429)

// ErrReauthenticationFailed is returned when a sensitive operation could not confirm the current password.
var ErrReauthenticationFailed = goerrors.New("reauthentication failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeReauthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is returned by operations that need an active session.
var ErrNotAuthenticated = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the session role does not allow the operation.
var ErrForbidden = goerrors.New("operation not allowed for role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrConsistency signals that a dual write could not be completed nor reverted.
var ErrConsistency = goerrors.New("identity and profile are out of sync", goerrors.CategoryConflict).
	WithTextCode(TextCodeConsistency).
	WithCode(goerrors.CodeConflict)

// ErrOrphanedIdentity signals a provider identity that has no profile yet.
var ErrOrphanedIdentity = goerrors.New("identity created without profile", goerrors.CategoryConflict).
	WithTextCode(TextCodeOrphanedIdentity).
	WithCode(goerrors.CodeConflict)

// ErrInvalidRole is returned for values outside the role enumeration.
var ErrInvalidRole = goerrors.New("invalid role", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// ErrFieldNotPermitted is returned when a self service update touches a restricted field.
var ErrFieldNotPermitted = goerrors.New("field cannot be updated", goerrors.CategoryValidation).
	WithTextCode(TextCodeFieldNotPermitted).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidInput wraps payload validation failures.
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when a session state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrProfileResolution is returned when the profile of an authenticated identity cannot be loaded or created.
var ErrProfileResolution = goerrors.New("unable to resolve profile", goerrors.CategoryInternal).
	WithTextCode(TextCodeProfileResolution).
	WithCode(goerrors.CodeInternal)

// ErrProfileNotFound is returned by profile stores for unknown UIDs.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotFound is returned by providers for unknown accounts. It must not
// reach end users from the password reset flow.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEmailInUse is returned by providers when the address is already registered.
var ErrEmailInUse = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrPasswordResetRequest is the generic password reset failure.
var ErrPasswordResetRequest = goerrors.New("unable to process password reset request", goerrors.CategoryOperation).
	WithTextCode(TextCodePasswordResetRequest).
	WithCode(goerrors.CodeInternal)

// ErrInvalidToken is returned for expired, malformed or misused provider tokens.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// withMeta clones a sentinel and attaches metadata, keeping the original pristine.
func withMeta(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// withSource clones a sentinel recording the underlying cause.
func withSource(base *goerrors.Error, source error, meta map[string]any) *goerrors.Error {
	clone := withMeta(base, meta)
	if source != nil {
		clone.Source = source
	}
	return clone
}

// TextCode returns the first non empty text code in the chain.
func TextCode(err error) string {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr == nil {
			return ""
		}
		if richErr.TextCode != "" {
			return richErr.TextCode
		}
		err = richErr.Source
	}
	return ""
}

// HasTextCode reports whether any rich error in the chain carries code.
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr == nil {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = richErr.Source
	}
	return false
}

// MessageKeyGeneric is the message key for errors without a user facing code.
const MessageKeyGeneric = "error.generic"

var userFacingCodes = map[string]struct{}{
	TextCodeInvalidCredentials:     {},
	TextCodeAccountDisabled:        {},
	TextCodeTooManyRequests:        {},
	TextCodeReauthenticationFailed: {},
	TextCodeNotAuthenticated:       {},
	TextCodeForbidden:              {},
	TextCodeConsistency:            {},
	TextCodeOrphanedIdentity:       {},
	TextCodeInvalidRole:            {},
	TextCodeFieldNotPermitted:      {},
	TextCodeInvalidInput:           {},
	TextCodeEmailInUse:             {},
	TextCodePasswordResetRequest:   {},
	TextCodeInvalidToken:           {},
	TextCodeProfileResolution:      {},
}

// MessageKey returns the localization key for err. Errors that must not
// leak provider detail map to MessageKeyGeneric.
func MessageKey(err error) string {
	code := TextCode(err)
	if _, ok := userFacingCodes[code]; ok {
		return code
	}
	return MessageKeyGeneric
}

// IsCredentialError reports whether err belongs to the credential class.
func IsCredentialError(err error) bool {
	return HasTextCode(err, TextCodeInvalidCredentials) ||
		HasTextCode(err, TextCodeAccountDisabled) ||
		HasTextCode(err, TextCodeTooManyRequests) ||
		HasTextCode(err, TextCodeReauthenticationFailed)
}

// IsAuthorizationError reports whether err belongs to the authorization class.
func IsAuthorizationError(err error) bool {
	return HasTextCode(err, TextCodeNotAuthenticated) || HasTextCode(err, TextCodeForbidden)
}

// IsConsistencyError reports whether err signals identity and profile divergence.
func IsConsistencyError(err error) bool {
	return HasTextCode(err, TextCodeConsistency) || HasTextCode(err, TextCodeOrphanedIdentity)
}

// IsTransientError reports errors outside the known classes, typically network or store failures.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if IsCredentialError(err) || IsAuthorizationError(err) || IsConsistencyError(err) {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		switch richErr.Category {
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			return false
		}
	}
	return true
}

// classifyProviderError keeps provider sentinels and wraps anything else.
func classifyProviderError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil && richErr.TextCode != "" {
		return err
	}
	if errors.Is(err, errNilIdentity) {
		return withSource(ErrInvalidCredentials, err, nil)
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, msg)
}

var errNilIdentity = errors.New("provider returned no identity")
