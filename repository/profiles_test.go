package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupProfileRepo(t *testing.T) (*ProfileRepository, *time.Time, func()) {
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, CreateProfilesTable(context.Background(), bunDB))

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewProfileRepository(bunDB, WithProfileClock(func() time.Time { return now }))

	cleanup := func() {
		_ = bunDB.Close()
	}
	return repo, &now, cleanup
}

func seedProfile(t *testing.T, repo *ProfileRepository, uid, email, name string, role auth.Role) *auth.Profile {
	t.Helper()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := auth.NewProfile(&auth.Identity{UID: uid, Email: email, DisplayName: name}, role, created)
	require.NoError(t, repo.Put(context.Background(), p))
	return p
}

func TestProfileRepositoryPutAndGet(t *testing.T) {
	repo, _, cleanup := setupProfileRepo(t)
	defer cleanup()

	ctx := context.Background()
	p := seedProfile(t, repo, "uid-1", "sara@paints.test", "Sara", auth.RoleSales)
	p.Permissions = []string{"sales.create"}
	p.EmergencyContact = &auth.EmergencyContact{Name: "Omar", Phone: "+966501234567"}
	require.NoError(t, repo.Put(ctx, p))

	got, err := repo.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, auth.ProfileID("uid-1"), got.ID)
	assert.Equal(t, "sara@paints.test", got.Email)
	assert.Equal(t, auth.RoleSales, got.Role)
	assert.True(t, got.IsActive)
	assert.Equal(t, []string{"sales.create"}, got.Permissions)
	require.NotNil(t, got.EmergencyContact)
	assert.Equal(t, "Omar", got.EmergencyContact.Name)
	assert.Equal(t, auth.DefaultSettings(), got.Settings)
	require.NotNil(t, got.CreatedAt)
	assert.True(t, got.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestProfileRepositoryGetMissing(t *testing.T) {
	repo, _, cleanup := setupProfileRepo(t)
	defer cleanup()

	_, err := repo.Get(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, auth.IsProfileNotFound(err))
}

func TestProfileRepositoryPutRejectsInvalidRole(t *testing.T) {
	repo, _, cleanup := setupProfileRepo(t)
	defer cleanup()

	p := auth.NewProfile(&auth.Identity{UID: "uid-x", Email: "x@paints.test"}, auth.Role("owner"), time.Now())
	err := repo.Put(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, auth.TextCodeInvalidRole, auth.TextCode(err))
}

func TestProfileRepositoryUpdateWritesOnlyGivenColumns(t *testing.T) {
	repo, now, cleanup := setupProfileRepo(t)
	defer cleanup()

	ctx := context.Background()
	seedProfile(t, repo, "uid-1", "sara@paints.test", "Sara", auth.RoleSales)

	*now = now.Add(time.Hour)
	city := "Riyadh"
	got, err := repo.Update(ctx, "uid-1", auth.ProfileUpdate{City: &city})
	require.NoError(t, err)

	assert.Equal(t, "Riyadh", got.City)
	assert.Equal(t, "Sara", got.DisplayName)
	assert.Equal(t, auth.RoleSales, got.Role)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(*now))
}

func TestProfileRepositoryUpdateMissing(t *testing.T) {
	repo, _, cleanup := setupProfileRepo(t)
	defer cleanup()

	city := "Jeddah"
	_, err := repo.Update(context.Background(), "nobody", auth.ProfileUpdate{City: &city})
	require.Error(t, err)
	assert.True(t, auth.IsProfileNotFound(err))
}

func TestProfileRepositoryQuery(t *testing.T) {
	repo, _, cleanup := setupProfileRepo(t)
	defer cleanup()

	ctx := context.Background()
	seedProfile(t, repo, "uid-1", "sara@paints.test", "Sara", auth.RoleSales)
	seedProfile(t, repo, "uid-2", "adel@paints.test", "Adel", auth.RoleAccountant)
	seedProfile(t, repo, "uid-3", "mona@paints.test", "Mona", auth.RoleSales)

	inactive := false
	_, err := repo.Update(ctx, "uid-3", auth.ProfileUpdate{IsActive: &inactive})
	require.NoError(t, err)

	sales := auth.RoleSales
	active := true

	cases := []struct {
		name   string
		filter auth.ProfileFilter
		want   []string
	}{
		{name: "all ordered by email", filter: auth.ProfileFilter{}, want: []string{"adel@paints.test", "mona@paints.test", "sara@paints.test"}},
		{name: "by role", filter: auth.ProfileFilter{Role: &sales}, want: []string{"mona@paints.test", "sara@paints.test"}},
		{name: "active sales", filter: auth.ProfileFilter{Role: &sales, IsActive: &active}, want: []string{"sara@paints.test"}},
		{name: "search name", filter: auth.ProfileFilter{Search: "ADE"}, want: []string{"adel@paints.test"}},
		{name: "limit", filter: auth.ProfileFilter{Limit: 1}, want: []string{"adel@paints.test"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profiles, err := repo.Query(ctx, tc.filter)
			require.NoError(t, err)

			emails := make([]string, 0, len(profiles))
			for _, p := range profiles {
				emails = append(emails, p.Email)
			}
			assert.Equal(t, tc.want, emails)
		})
	}
}
