package auth

import (
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Identity is the provider side view of an authenticated principal.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// Clone returns a copy safe to hand out.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Theme is the console color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// NotificationSettings toggles notification channels.
type NotificationSettings struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Settings holds user preferences.
type Settings struct {
	Theme         Theme                `json:"theme"`
	Language      string               `json:"language"`
	Notifications NotificationSettings `json:"notifications"`
}

// DefaultSettings returns the preferences given to new profiles.
func DefaultSettings() Settings {
	return Settings{
		Theme:    ThemeLight,
		Language: "ar",
		Notifications: NotificationSettings{
			Email: true,
			Push:  true,
		},
	}
}

// EmergencyContact is the contact person stored on a profile.
type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

// Profile is the application side record for an identity.
type Profile struct {
	bun.BaseModel    `bun:"table:profiles,alias:prf"`
	ID               uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	UID              string            `bun:"uid,notnull,unique" json:"uid"`
	Email            string            `bun:"email,notnull" json:"email"`
	DisplayName      string            `bun:"display_name" json:"display_name,omitempty"`
	Role             Role              `bun:"role,notnull" json:"role"`
	IsActive         bool              `bun:"is_active,notnull" json:"is_active"`
	PhotoURL         string            `bun:"photo_url" json:"photo_url,omitempty"`
	Phone            string            `bun:"phone_number" json:"phone_number,omitempty"`
	Address          string            `bun:"address" json:"address,omitempty"`
	City             string            `bun:"city" json:"city,omitempty"`
	Country          string            `bun:"country" json:"country,omitempty"`
	PostalCode       string            `bun:"postal_code" json:"postal_code,omitempty"`
	Department       string            `bun:"department" json:"department,omitempty"`
	Position         string            `bun:"position" json:"position,omitempty"`
	HireDate         *time.Time        `bun:"hire_date,nullzero" json:"hire_date,omitempty"`
	BirthDate        *time.Time        `bun:"birth_date,nullzero" json:"birth_date,omitempty"`
	EmergencyContact *EmergencyContact `bun:"emergency_contact" json:"emergency_contact,omitempty"`
	Permissions      []string          `bun:"permissions" json:"permissions,omitempty"`
	Settings         Settings          `bun:"settings" json:"settings"`
	CreatedAt        *time.Time        `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt        *time.Time        `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
	LastLoginAt      *time.Time        `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
}

// ProfileID derives the stable profile key for a provider UID.
func ProfileID(uid string) uuid.UUID {
	if id, err := hashid.NewUUID(uid); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(uid))
}

// NewProfile builds the default profile for a freshly seen identity.
func NewProfile(identity *Identity, role Role, now time.Time) *Profile {
	if !role.IsValid() {
		role = DefaultRole
	}
	ts := now
	p := &Profile{
		ID:          ProfileID(identity.UID),
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
		Role:        role,
		IsActive:    true,
		Settings:    DefaultSettings(),
		CreatedAt:   &ts,
		UpdatedAt:   &ts,
	}
	if p.DisplayName == "" {
		p.DisplayName = displayNameFromEmail(identity.Email)
	}
	return p
}

// Clone deep copies the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.HireDate = cloneTime(p.HireDate)
	c.BirthDate = cloneTime(p.BirthDate)
	c.CreatedAt = cloneTime(p.CreatedAt)
	c.UpdatedAt = cloneTime(p.UpdatedAt)
	c.LastLoginAt = cloneTime(p.LastLoginAt)
	if p.EmergencyContact != nil {
		ec := *p.EmergencyContact
		c.EmergencyContact = &ec
	}
	if p.Permissions != nil {
		c.Permissions = append([]string(nil), p.Permissions...)
	}
	return &c
}

// ProfileUpdate is a partial profile update. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName      *string           `json:"display_name,omitempty"`
	PhotoURL         *string           `json:"photo_url,omitempty"`
	Phone            *string           `json:"phone_number,omitempty"`
	Address          *string           `json:"address,omitempty"`
	City             *string           `json:"city,omitempty"`
	Country          *string           `json:"country,omitempty"`
	PostalCode       *string           `json:"postal_code,omitempty"`
	Department       *string           `json:"department,omitempty"`
	Position         *string           `json:"position,omitempty"`
	BirthDate        *time.Time        `json:"birth_date,omitempty"`
	EmergencyContact *EmergencyContact `json:"emergency_contact,omitempty"`
	Settings         *Settings         `json:"settings,omitempty"`

	// restricted to controller driven flows
	Email       *string    `json:"email,omitempty"`
	Role        *Role      `json:"role,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Empty reports whether the update carries no change.
func (u ProfileUpdate) Empty() bool {
	return len(u.Columns()) == 0
}

// Columns lists the profile columns touched by the update.
func (u ProfileUpdate) Columns() []string {
	cols := []string{}
	add := func(set bool, col string) {
		if set {
			cols = append(cols, col)
		}
	}
	add(u.DisplayName != nil, "display_name")
	add(u.PhotoURL != nil, "photo_url")
	add(u.Phone != nil, "phone_number")
	add(u.Address != nil, "address")
	add(u.City != nil, "city")
	add(u.Country != nil, "country")
	add(u.PostalCode != nil, "postal_code")
	add(u.Department != nil, "department")
	add(u.Position != nil, "position")
	add(u.BirthDate != nil, "birth_date")
	add(u.EmergencyContact != nil, "emergency_contact")
	add(u.Settings != nil, "settings")
	add(u.Email != nil, "email")
	add(u.Role != nil, "role")
	add(u.IsActive != nil, "is_active")
	add(u.LastLoginAt != nil, "last_login_at")
	return cols
}

// restrictedFields lists set fields that self service updates may not touch.
func (u ProfileUpdate) restrictedFields() []string {
	out := []string{}
	if u.Email != nil {
		out = append(out, "email")
	}
	if u.Role != nil {
		out = append(out, "role")
	}
	if u.IsActive != nil {
		out = append(out, "is_active")
	}
	if u.LastLoginAt != nil {
		out = append(out, "last_login_at")
	}
	return out
}

// touchesProvider reports whether the update changes fields mirrored on the provider.
func (u ProfileUpdate) touchesProvider() bool {
	return u.DisplayName != nil || u.PhotoURL != nil
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if p == nil {
		return
	}
	setString(&p.DisplayName, u.DisplayName)
	setString(&p.PhotoURL, u.PhotoURL)
	setString(&p.Phone, u.Phone)
	setString(&p.Address, u.Address)
	setString(&p.City, u.City)
	setString(&p.Country, u.Country)
	setString(&p.PostalCode, u.PostalCode)
	setString(&p.Department, u.Department)
	setString(&p.Position, u.Position)
	setString(&p.Email, u.Email)
	if u.BirthDate != nil {
		p.BirthDate = cloneTime(u.BirthDate)
	}
	if u.EmergencyContact != nil {
		ec := *u.EmergencyContact
		p.EmergencyContact = &ec
	}
	if u.Settings != nil {
		p.Settings = *u.Settings
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.LastLoginAt != nil {
		p.LastLoginAt = cloneTime(u.LastLoginAt)
	}
}

// ProfileFilter narrows profile queries. Zero values match everything.
type ProfileFilter struct {
	Role       *Role
	IsActive   *bool
	Department string
	Search     string
	Limit      int
}

// Match reports whether p satisfies the filter. Search matches email and
// display name, case insensitive.
func (f ProfileFilter) Match(p *Profile) bool {
	if p == nil {
		return false
	}
	if f.Role != nil && p.Role != *f.Role {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.Department != "" && !strings.EqualFold(f.Department, p.Department) {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Email), term) &&
			!strings.Contains(strings.ToLower(p.DisplayName), term) {
			return false
		}
	}
	return true
}

// StringPtr is a helper to build updates.
func StringPtr(s string) *string {
	return &s
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func displayNameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
