package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/storage/migrations"
	"github.com/MrEthical07/linkauth/storage/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store is the bun-backed account repository.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

// NewStore wraps an open database. The schema must already be migrated.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *bun.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UserByID loads a user by primary key.
func (s *Store) UserByID(ctx context.Context, id string) (*account.User, error) {
	row := new(models.User)
	err := s.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, classify("get user by id", err)
	}
	return toUser(row), nil
}

// UserByEmail loads a user by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*account.User, error) {
	row := new(models.User)
	err := s.db.NewSelect().
		Model(row).
		Where("email = ?", account.NormalizeEmail(email)).
		Scan(ctx)
	if err != nil {
		return nil, classify("get user by email", err)
	}
	return toUser(row), nil
}

// CreateAccount inserts user, its credential and, when non-nil, its first
// link in one transaction.
func (s *Store) CreateAccount(ctx context.Context, user *account.User, cred *account.Credential, link *account.OAuthLink) error {
	now := s.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	user.Email = account.NormalizeEmail(user.Email)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(fromUser(user)).Exec(ctx); err != nil {
			return classify("create user", err)
		}

		credRow := &models.Credential{UserID: user.ID, UpdatedAt: now}
		if cred != nil && cred.PasswordHash != "" {
			hash := cred.PasswordHash
			credRow.PasswordHash = &hash
		}
		if _, err := tx.NewInsert().Model(credRow).Exec(ctx); err != nil {
			return classify("create credential", err)
		}

		if link != nil {
			link.UserID = user.ID
			stampLink(link, now)
			if _, err := tx.NewInsert().Model(fromLink(link)).Exec(ctx); err != nil {
				return classify("create oauth link", err)
			}
		}
		return nil
	})
}

// DeleteAccount removes the user with its credential and links.
func (s *Store) DeleteAccount(ctx context.Context, userID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.OAuthLink)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
			return classify("delete oauth links", err)
		}
		if _, err := tx.NewDelete().Model((*models.Credential)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
			return classify("delete credential", err)
		}
		res, err := tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", userID).Exec(ctx)
		if err != nil {
			return classify("delete user", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return account.ErrNotFound
		}
		return nil
	})
}

// SetStatus changes a user's lifecycle status.
func (s *Store) SetStatus(ctx context.Context, userID string, status account.Status) error {
	res, err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return classify("set user status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// Credential loads the credential of userID.
func (s *Store) Credential(ctx context.Context, userID string) (*account.Credential, error) {
	row := new(models.Credential)
	err := s.db.NewSelect().
		Model(row).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, classify("get credential", err)
	}
	return toCredential(row), nil
}

// UpdatePasswordHash replaces the stored hash of userID.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.NewUpdate().
		Model((*models.Credential)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", s.now().UTC()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return classify("update password hash", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// LinkByProviderUserID loads the link for a provider identity.
func (s *Store) LinkByProviderUserID(ctx context.Context, provider, providerUserID string) (*account.OAuthLink, error) {
	row := new(models.OAuthLink)
	err := s.db.NewSelect().
		Model(row).
		Where("provider = ?", provider).
		Where("provider_user_id = ?", providerUserID).
		Scan(ctx)
	if err != nil {
		return nil, classify("get oauth link", err)
	}
	return toLink(row), nil
}

// LinksByUser lists userID's links ordered by creation.
func (s *Store) LinksByUser(ctx context.Context, userID string) ([]account.OAuthLink, error) {
	var rows []models.OAuthLink
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("created_at ASC", "provider ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify("list oauth links", err)
	}
	links := make([]account.OAuthLink, 0, len(rows))
	for i := range rows {
		links = append(links, *toLink(&rows[i]))
	}
	return links, nil
}

// CreateLink inserts link. Either unique index tripping yields ErrDuplicate.
func (s *Store) CreateLink(ctx context.Context, link *account.OAuthLink) error {
	stampLink(link, s.now().UTC())
	if _, err := s.db.NewInsert().Model(fromLink(link)).Exec(ctx); err != nil {
		return classify("create oauth link", err)
	}
	return nil
}

// UpdateLinkSnapshot refreshes the email, name and avatar copied from the
// provider at the last login.
func (s *Store) UpdateLinkSnapshot(ctx context.Context, link *account.OAuthLink) error {
	link.UpdatedAt = s.now().UTC()
	_, err := s.db.NewUpdate().
		Model((*models.OAuthLink)(nil)).
		Set("email = ?", link.Email).
		Set("name = ?", link.Name).
		Set("avatar_url = ?", link.AvatarURL).
		Set("updated_at = ?", link.UpdatedAt).
		Where("id = ?", link.ID).
		Exec(ctx)
	if err != nil {
		return classify("update oauth link", err)
	}
	return nil
}

// DeleteLink removes userID's link for provider inside a transaction that
// first hands the user's current auth methods to guard. A guard error aborts
// the delete and is returned unchanged. A missing link yields ErrNotFound.
func (s *Store) DeleteLink(
	ctx context.Context,
	userID, provider string,
	guard func(cred account.Credential, links []account.OAuthLink) error,
) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		userQuery := tx.NewSelect().Model((*models.User)(nil)).Column("id").Where("id = ?", userID)
		if !migrations.IsSQLite(tx) {
			userQuery = userQuery.For("UPDATE")
		}
		var lockedID string
		if err := userQuery.Scan(ctx, &lockedID); err != nil {
			return classify("lock user", err)
		}

		credRow := new(models.Credential)
		if err := tx.NewSelect().Model(credRow).Where("user_id = ?", userID).Scan(ctx); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return classify("get credential", err)
			}
			credRow.UserID = userID
		}

		var rows []models.OAuthLink
		if err := tx.NewSelect().Model(&rows).Where("user_id = ?", userID).Scan(ctx); err != nil {
			return classify("list oauth links", err)
		}
		links := make([]account.OAuthLink, 0, len(rows))
		for i := range rows {
			links = append(links, *toLink(&rows[i]))
		}

		if guard != nil {
			if err := guard(*toCredential(credRow), links); err != nil {
				return err
			}
		}

		res, err := tx.NewDelete().
			Model((*models.OAuthLink)(nil)).
			Where("user_id = ?", userID).
			Where("provider = ?", provider).
			Exec(ctx)
		if err != nil {
			return classify("delete oauth link", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return account.ErrNotFound
		}
		return nil
	})
}

func stampLink(link *account.OAuthLink, now time.Time) {
	if link.ID == "" {
		link.ID = account.NewID()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
}

// classify maps driver errors onto the account sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return account.ErrNotFound
	}
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, account.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUniqueViolation reports whether err is a unique or primary key violation
// from SQLite or PostgreSQL.
func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
