package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     interface{ Validate() error }
		wantErr bool
	}{
		{name: "sign in ok", req: auth.SignInRequest{Email: "ana@paints.test", Password: "x"}},
		{name: "sign in bad email", req: auth.SignInRequest{Email: "ana", Password: "x"}, wantErr: true},
		{name: "sign in missing password", req: auth.SignInRequest{Email: "ana@paints.test"}, wantErr: true},
		{name: "register ok", req: auth.RegisterRequest{Email: "ana@paints.test", Password: "correct-horse", Role: "sales"}},
		{name: "register short password", req: auth.RegisterRequest{Email: "ana@paints.test", Password: "short"}, wantErr: true},
		{name: "register unknown role", req: auth.RegisterRequest{Email: "ana@paints.test", Password: "correct-horse", Role: "owner"}, wantErr: true},
		{name: "change email ok", req: auth.ChangeEmailRequest{Email: "new@paints.test", CurrentPassword: "pw"}},
		{name: "change email missing password", req: auth.ChangeEmailRequest{Email: "new@paints.test"}, wantErr: true},
		{name: "change password ok", req: auth.ChangePasswordRequest{CurrentPassword: "pw", NewPassword: "correct-horse"}},
		{name: "change password too long", req: auth.ChangePasswordRequest{CurrentPassword: "pw", NewPassword: string(make([]byte, 80))}, wantErr: true},
		{name: "reset ok", req: auth.PasswordResetRequest{Email: "ana@paints.test"}},
		{name: "reset bad email", req: auth.PasswordResetRequest{Email: "not an email"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateProfileUpdateRejectsRestrictedFields(t *testing.T) {
	role := auth.RoleAdmin
	active := false
	now := time.Now()

	tests := []struct {
		name   string
		update auth.ProfileUpdate
		field  string
	}{
		{name: "role", update: auth.ProfileUpdate{Role: &role}, field: "role"},
		{name: "email", update: auth.ProfileUpdate{Email: auth.StringPtr("x@paints.test")}, field: "email"},
		{name: "is_active", update: auth.ProfileUpdate{IsActive: &active}, field: "is_active"},
		{name: "last_login_at", update: auth.ProfileUpdate{LastLoginAt: &now}, field: "last_login_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateProfileUpdate(tt.update, "SA")
			require.Error(t, err)
			assert.Equal(t, auth.TextCodeFieldNotPermitted, auth.TextCode(err))

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Contains(t, richErr.Metadata["fields"], tt.field)
		})
	}
}

func TestValidateProfileUpdateFields(t *testing.T) {
	tests := []struct {
		name    string
		update  auth.ProfileUpdate
		wantErr bool
	}{
		{name: "empty update", update: auth.ProfileUpdate{}},
		{name: "display name", update: auth.ProfileUpdate{DisplayName: auth.StringPtr("Ana")}},
		{name: "blank display name", update: auth.ProfileUpdate{DisplayName: auth.StringPtr("")}, wantErr: true},
		{name: "photo url", update: auth.ProfileUpdate{PhotoURL: auth.StringPtr("https://cdn.paints.test/a.png")}},
		{name: "bad photo url", update: auth.ProfileUpdate{PhotoURL: auth.StringPtr("not a url")}, wantErr: true},
		{name: "theme", update: auth.ProfileUpdate{Settings: &auth.Settings{Theme: auth.ThemeDark, Language: "en"}}},
		{name: "unknown theme", update: auth.ProfileUpdate{Settings: &auth.Settings{Theme: "neon"}}, wantErr: true},
		{name: "bad phone", update: auth.ProfileUpdate{Phone: auth.StringPtr("12")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateProfileUpdate(tt.update, "SA")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, auth.TextCodeInvalidInput, auth.TextCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateProfileUpdateNormalizesPhones(t *testing.T) {
	update := auth.ProfileUpdate{
		Phone:            auth.StringPtr("050 123 4567"),
		EmergencyContact: &auth.EmergencyContact{Name: "Omar", Phone: "+966 50 765 4321"},
	}

	out, err := auth.ValidateProfileUpdate(update, "SA")
	require.NoError(t, err)
	assert.Equal(t, "+966501234567", *out.Phone)
	assert.Equal(t, "+966507654321", out.EmergencyContact.Phone)
	assert.Equal(t, "050 123 4567", *update.Phone, "input is not mutated")
}
