package repository

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileRepository implements auth.ProfileStore using Bun.
type ProfileRepository struct {
	db  bun.IDB
	now func() time.Time
}

var _ auth.ProfileStore = (*ProfileRepository)(nil)

// ProfileRepositoryOption customizes the repository.
type ProfileRepositoryOption func(*ProfileRepository)

// WithProfileClock sets the clock stamping UpdatedAt.
func WithProfileClock(now func() time.Time) ProfileRepositoryOption {
	return func(r *ProfileRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewProfileRepository creates a new repository.
func NewProfileRepository(db bun.IDB, opts ...ProfileRepositoryOption) *ProfileRepository {
	r := &ProfileRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// CreateProfilesTable creates the profiles table when missing.
func CreateProfilesTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*auth.Profile)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Get implements auth.ProfileStore.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*auth.Profile, error) {
	profile := &auth.Profile{}
	err := r.db.NewSelect().
		Model(profile).
		Where("?TableAlias.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, auth.ErrProfileNotFound.Clone().WithMetadata(map[string]any{"uid": uid})
		}
		return nil, err
	}
	return profile, nil
}

// Put implements auth.ProfileStore. CreatedAt is kept on overwrite.
func (r *ProfileRepository) Put(ctx context.Context, profile *auth.Profile) error {
	if profile == nil || strings.TrimSpace(profile.UID) == "" {
		return auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"reason": "profile uid is required"})
	}
	if !profile.Role.IsValid() {
		return auth.ErrInvalidRole.Clone().WithMetadata(map[string]any{"role": profile.Role})
	}

	model := profile.Clone()
	if model.ID == uuid.Nil {
		model.ID = auth.ProfileID(model.UID)
	}
	now := r.now()
	if model.CreatedAt == nil {
		model.CreatedAt = &now
	}
	model.UpdatedAt = &now

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (uid) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("display_name = EXCLUDED.display_name").
		Set("role = EXCLUDED.role").
		Set("is_active = EXCLUDED.is_active").
		Set("photo_url = EXCLUDED.photo_url").
		Set("phone_number = EXCLUDED.phone_number").
		Set("address = EXCLUDED.address").
		Set("city = EXCLUDED.city").
		Set("country = EXCLUDED.country").
		Set("postal_code = EXCLUDED.postal_code").
		Set("department = EXCLUDED.department").
		Set("position = EXCLUDED.position").
		Set("hire_date = EXCLUDED.hire_date").
		Set("birth_date = EXCLUDED.birth_date").
		Set("emergency_contact = EXCLUDED.emergency_contact").
		Set("permissions = EXCLUDED.permissions").
		Set("settings = EXCLUDED.settings").
		Set("updated_at = EXCLUDED.updated_at").
		Set("last_login_at = EXCLUDED.last_login_at").
		Exec(ctx)
	if err != nil {
		return err
	}

	profile.ID = model.ID
	profile.CreatedAt = model.CreatedAt
	profile.UpdatedAt = model.UpdatedAt
	return nil
}

// Update implements auth.ProfileStore. Only the columns set on update are
// written, plus updated_at from the repository clock.
func (r *ProfileRepository) Update(ctx context.Context, uid string, update auth.ProfileUpdate) (*auth.Profile, error) {
	if update.Role != nil && !update.Role.IsValid() {
		return nil, auth.ErrInvalidRole.Clone().WithMetadata(map[string]any{"role": *update.Role})
	}

	model := &auth.Profile{}
	update.Apply(model)
	now := r.now()
	model.UpdatedAt = &now

	columns := append(update.Columns(), "updated_at")

	res, err := r.db.NewUpdate().
		Model(model).
		Column(columns...).
		Where("uid = ?", uid).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, auth.ErrProfileNotFound.Clone().WithMetadata(map[string]any{"uid": uid})
	}

	return r.Get(ctx, uid)
}

// Query implements auth.ProfileStore.
func (r *ProfileRepository) Query(ctx context.Context, filter auth.ProfileFilter) ([]*auth.Profile, error) {
	profiles := []*auth.Profile{}
	q := r.db.NewSelect().Model(&profiles)

	if filter.Role != nil {
		q = q.Where("?TableAlias.role = ?", *filter.Role)
	}
	if filter.IsActive != nil {
		q = q.Where("?TableAlias.is_active = ?", *filter.IsActive)
	}
	if filter.Department != "" {
		q = q.Where("LOWER(?TableAlias.department) = LOWER(?)", filter.Department)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("LOWER(?TableAlias.email) LIKE ?", like).
				WhereOr("LOWER(?TableAlias.display_name) LIKE ?", like)
		})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	if err := q.OrderExpr("LOWER(?TableAlias.email) ASC").Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return []*auth.Profile{}, nil
		}
		return nil, err
	}
	return profiles, nil
}
