package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	trackFailedLoginSQL = `UPDATE "credentials"
SET
	"login_attempts" = CASE
		WHEN "login_attempt_at" IS NOT NULL AND "login_attempt_at" < ? THEN 1
		ELSE "login_attempts" + 1
	END,
	"login_attempt_at" = ?
WHERE
	"id" = ?
RETURNING *;`

	trackSuccessfulLoginSQL = `UPDATE "credentials"
SET
	"loggedin_at" = ?,
	"login_attempt_at" = NULL,
	"login_attempts" = 0
WHERE
	"id" = ?
RETURNING *;`

	updatePasswordSQL = `UPDATE "credentials"
SET
	"password_hash" = ?,
	"password_version" = "password_version" + 1,
	"session_version" = "session_version" + 1,
	"login_attempt_at" = NULL,
	"login_attempts" = 0,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`

	resetPasswordSQL = `UPDATE "credentials"
SET
	"password_hash" = ?,
	"password_version" = "password_version" + 1,
	"session_version" = "session_version" + 1,
	"login_attempt_at" = NULL,
	"login_attempts" = 0,
	"updated_at" = ?
WHERE
	"id" = ? AND "password_version" = ?
RETURNING *;`

	consumeSessionVersionSQL = `UPDATE "credentials"
SET
	"session_version" = "session_version" + 1
WHERE
	"id" = ? AND "session_version" = ?
RETURNING *;`

	updateEmailSQL = `UPDATE "credentials"
SET
	"email" = ?,
	"email_verified" = FALSE,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`

	updateProfileSQL = `UPDATE "credentials"
SET
	"display_name" = ?,
	"photo_url" = ?,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`

	markVerifiedSQL = `UPDATE "credentials"
SET
	"email_verified" = TRUE,
	"updated_at" = ?
WHERE
	"id" = ? AND "email" = ?
RETURNING *;`

	setDisabledSQL = `UPDATE "credentials"
SET
	"disabled" = ?,
	"session_version" = "session_version" + 1,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`
)

// Credentials persists provider accounts.
type Credentials interface {
	repository.Repository[*Credential]

	Register(ctx context.Context, record *Credential) (*Credential, error)
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	// TrackFailedLogin counts a failure. Attempts older than resetBefore
	// start a new count.
	TrackFailedLogin(ctx context.Context, id uuid.UUID, at, resetBefore time.Time) (*Credential, error)
	TrackSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) (*Credential, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) (*Credential, error)
	// ResetPassword sets hash when the password version still equals version.
	ResetPassword(ctx context.Context, id uuid.UUID, version int, hash string, at time.Time) (*Credential, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string, at time.Time) (*Credential, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName, photoURL string, at time.Time) (*Credential, error)
	MarkVerified(ctx context.Context, id uuid.UUID, email string, at time.Time) (*Credential, error)
	SetDisabled(ctx context.Context, id uuid.UUID, disabled bool, at time.Time) (*Credential, error)
	// ConsumeSessionVersion bumps the session version when it still equals
	// version. It returns a not found error when the version moved on.
	ConsumeSessionVersion(ctx context.Context, id uuid.UUID, version int) (*Credential, error)
}

type credentials struct {
	repository.Repository[*Credential]
	db *bun.DB
}

var _ Credentials = (*credentials)(nil)

// NewCredentialsRepository creates the bun backed credentials repository.
func NewCredentialsRepository(db *bun.DB) Credentials {
	repo := repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential { return &Credential{} },
		GetID: func(c *Credential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Credential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &credentials{
		Repository: repo,
		db:         db,
	}
}

// CreateCredentialsTable creates the credentials table when missing.
func CreateCredentialsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*Credential)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (c *credentials) Register(ctx context.Context, record *Credential) (*Credential, error) {
	return c.RegisterTx(ctx, c.db, record)
}

func (c *credentials) RegisterTx(ctx context.Context, tx bun.IDB, record *Credential) (*Credential, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = normalizeEmail(record.Email)
	return c.Repository.CreateTx(ctx, tx, record)
}

func (c *credentials) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	return c.GetByIdentifierTx(ctx, c.db, normalizeEmail(email))
}

func (c *credentials) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Credential, error) {
	return c.GetByIdentifierTx(ctx, c.db, identifier, criteria...)
}

// GetByIdentifierTx resolves identifier as an id when it parses as a UUID,
// otherwise as an email.
func (c *credentials) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Credential, error) {
	identifier = strings.TrimSpace(identifier)

	column, value := "email", normalizeEmail(identifier)
	if _, err := uuid.Parse(identifier); err == nil {
		column, value = "id", identifier
	}

	record := &Credential{}
	q := tx.NewSelect().Model(record)
	for _, cr := range criteria {
		q.Apply(cr)
	}

	err := q.
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": identifier,
				})
		}
		return nil, err
	}
	return record, nil
}

func (c *credentials) TrackFailedLogin(ctx context.Context, id uuid.UUID, at, resetBefore time.Time) (*Credential, error) {
	return c.rawOne(ctx, trackFailedLoginSQL, id, resetBefore, at, id.String())
}

func (c *credentials) TrackSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, trackSuccessfulLoginSQL, id, at, id.String())
}

func (c *credentials) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, updatePasswordSQL, id, hash, at, id.String())
}

func (c *credentials) ResetPassword(ctx context.Context, id uuid.UUID, version int, hash string, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, resetPasswordSQL, id, hash, at, id.String(), version)
}

func (c *credentials) UpdateEmail(ctx context.Context, id uuid.UUID, email string, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, updateEmailSQL, id, normalizeEmail(email), at, id.String())
}

func (c *credentials) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, photoURL string, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, updateProfileSQL, id, displayName, photoURL, at, id.String())
}

func (c *credentials) MarkVerified(ctx context.Context, id uuid.UUID, email string, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, markVerifiedSQL, id, at, id.String(), normalizeEmail(email))
}

func (c *credentials) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool, at time.Time) (*Credential, error) {
	return c.rawOne(ctx, setDisabledSQL, id, disabled, at, id.String())
}

func (c *credentials) ConsumeSessionVersion(ctx context.Context, id uuid.UUID, version int) (*Credential, error) {
	return c.rawOne(ctx, consumeSessionVersionSQL, id, id.String(), version)
}

func (c *credentials) rawOne(ctx context.Context, sql string, id uuid.UUID, args ...any) (*Credential, error) {
	res, err := c.Repository.RawTx(ctx, c.db, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return res[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
