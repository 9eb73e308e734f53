package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// MinPasswordLength is the shortest password accepted on sign up and change.
var MinPasswordLength = 8

// MaxPasswordLength matches the bcrypt input limit.
var MaxPasswordLength = 72

// SignInRequest payload
type SignInRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest payload
type RegisterRequest struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	DisplayName string `form:"display_name" json:"display_name"`
	Role        string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, passwordRules()...),
		validation.Field(&r.DisplayName, validation.Length(0, 120)),
		validation.Field(&r.Role, validation.By(validateRole)),
	)
}

// ChangeEmailRequest payload
type ChangeEmailRequest struct {
	Email           string `form:"email" json:"email"`
	CurrentPassword string `form:"current_password" json:"current_password"`
}

// Validate will run validation rules
func (r ChangeEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.CurrentPassword, validation.Required),
	)
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, passwordRules()...),
	)
}

// PasswordResetRequest payload
type PasswordResetRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(MinPasswordLength, MaxPasswordLength),
	}
}

func validateRole(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := ParseRole(s); err != nil {
		return errors.New("must be one of admin, manager, sales, accountant, viewer")
	}
	return nil
}

// ValidateProfileUpdate checks a self service update and returns a copy with
// the phone numbers normalized to E.164.
func ValidateProfileUpdate(u ProfileUpdate, region string) (ProfileUpdate, error) {
	if restricted := u.restrictedFields(); len(restricted) > 0 {
		return u, withMeta(ErrFieldNotPermitted, map[string]any{"fields": restricted})
	}

	err := validation.ValidateStruct(&u,
		validation.Field(&u.DisplayName, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&u.PhotoURL, is.URL),
		validation.Field(&u.Address, validation.Length(0, 255)),
		validation.Field(&u.City, validation.Length(0, 120)),
		validation.Field(&u.Country, validation.Length(0, 120)),
		validation.Field(&u.PostalCode, validation.Length(0, 20)),
		validation.Field(&u.Department, validation.Length(0, 120)),
		validation.Field(&u.Position, validation.Length(0, 120)),
		validation.Field(&u.Settings, validation.By(validateSettings)),
	)
	if err != nil {
		return u, invalidInput(err)
	}

	if u.Phone != nil && strings.TrimSpace(*u.Phone) != "" {
		phone, err := NormalizePhone(*u.Phone, region)
		if err != nil {
			return u, invalidInput(validation.Errors{"phone_number": err})
		}
		u.Phone = &phone
	}

	if u.EmergencyContact != nil && strings.TrimSpace(u.EmergencyContact.Phone) != "" {
		phone, err := NormalizePhone(u.EmergencyContact.Phone, region)
		if err != nil {
			return u, invalidInput(validation.Errors{"emergency_contact.phone": err})
		}
		ec := *u.EmergencyContact
		ec.Phone = phone
		u.EmergencyContact = &ec
	}

	return u, nil
}

func validateSettings(value any) error {
	s, _ := value.(*Settings)
	if s == nil {
		return nil
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem, "":
	default:
		return errors.New("theme must be light, dark or system")
	}
	if len(s.Language) > 8 {
		return errors.New("language must be a language tag")
	}
	return nil
}

// NormalizePhone parses number in region and formats it as E.164.
func NormalizePhone(number, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(number), strings.ToUpper(region))
	if err != nil {
		return "", errors.New("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("must be a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func invalidInput(err error) error {
	meta := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := map[string]string{}
		for k, v := range verrs {
			fields[k] = v.Error()
		}
		meta["fields"] = fields
	}
	return withSource(ErrInvalidInput, err, meta)
}
