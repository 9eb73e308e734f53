package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfile(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	identity := &auth.Identity{UID: "uid-1", Email: "layla@paints.test"}

	p := auth.NewProfile(identity, "", now)
	assert.Equal(t, auth.DefaultRole, p.Role)
	assert.True(t, p.IsActive)
	assert.Equal(t, "layla", p.DisplayName)
	assert.Equal(t, auth.DefaultSettings(), p.Settings)
	assert.Equal(t, auth.ProfileID("uid-1"), p.ID)
	require.NotNil(t, p.CreatedAt)
	assert.Equal(t, now, *p.CreatedAt)

	admin := auth.NewProfile(identity, auth.RoleAdmin, now)
	assert.Equal(t, auth.RoleAdmin, admin.Role)
}

func TestProfileIDIsStable(t *testing.T) {
	assert.Equal(t, auth.ProfileID("uid-1"), auth.ProfileID("uid-1"))
	assert.NotEqual(t, auth.ProfileID("uid-1"), auth.ProfileID("uid-2"))
}

func TestProfileCloneIsDeep(t *testing.T) {
	birth := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	p := &auth.Profile{
		UID:              "u1",
		BirthDate:        &birth,
		EmergencyContact: &auth.EmergencyContact{Name: "Omar"},
		Permissions:      []string{"sales.create"},
	}

	c := p.Clone()
	*c.BirthDate = c.BirthDate.AddDate(1, 0, 0)
	c.EmergencyContact.Name = "Sara"
	c.Permissions[0] = "users.delete"

	assert.Equal(t, 1990, p.BirthDate.Year())
	assert.Equal(t, "Omar", p.EmergencyContact.Name)
	assert.Equal(t, "sales.create", p.Permissions[0])
}

func TestProfileUpdateColumnsAndApply(t *testing.T) {
	role := auth.RoleSales
	upd := auth.ProfileUpdate{
		DisplayName: auth.StringPtr("Ana"),
		City:        auth.StringPtr("Riyadh"),
		Role:        &role,
	}

	assert.Equal(t, []string{"display_name", "city", "role"}, upd.Columns())
	assert.False(t, upd.Empty())
	assert.True(t, auth.ProfileUpdate{}.Empty())

	p := &auth.Profile{DisplayName: "old", Country: "SA", Role: auth.RoleViewer}
	upd.Apply(p)
	assert.Equal(t, "Ana", p.DisplayName)
	assert.Equal(t, "Riyadh", p.City)
	assert.Equal(t, "SA", p.Country, "unset fields are kept")
	assert.Equal(t, auth.RoleSales, p.Role)
}

func TestProfileFilterMatch(t *testing.T) {
	sales := auth.RoleSales
	inactive := false
	p := &auth.Profile{Email: "ana@paints.test", DisplayName: "Ana Saleh", Role: auth.RoleSales, IsActive: true, Department: "Retail"}

	assert.True(t, auth.ProfileFilter{}.Match(p))
	assert.True(t, auth.ProfileFilter{Role: &sales}.Match(p))
	assert.True(t, auth.ProfileFilter{Department: "retail"}.Match(p))
	assert.True(t, auth.ProfileFilter{Search: "SALEH"}.Match(p))
	assert.False(t, auth.ProfileFilter{IsActive: &inactive}.Match(p))
	assert.False(t, auth.ProfileFilter{Search: "omar"}.Match(p))
	assert.False(t, auth.ProfileFilter{}.Match(nil))
}
