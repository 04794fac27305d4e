package migrations

import (
	"context"
	"fmt"

	"github.com/MrEthical07/linkauth/storage/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260301000000, down_20260301000000)
}

// up_20260301000000 creates users, credentials and oauth_links.
func up_20260301000000(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*models.User)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create users table: %w", err)
		}

		if _, err := tx.NewCreateTable().
			Model((*models.Credential)(nil)).
			IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return fmt.Errorf("create credentials table: %w", err)
		}

		if _, err := tx.NewCreateTable().
			Model((*models.OAuthLink)(nil)).
			IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return fmt.Errorf("create oauth_links table: %w", err)
		}

		if _, err := tx.NewCreateIndex().
			Model((*models.OAuthLink)(nil)).
			Unique().
			IfNotExists().
			Index("ux_oauth_links_provider_subject").
			Column("provider", "provider_user_id").
			Exec(ctx); err != nil {
			return fmt.Errorf("create provider subject index: %w", err)
		}

		if _, err := tx.NewCreateIndex().
			Model((*models.OAuthLink)(nil)).
			Unique().
			IfNotExists().
			Index("ux_oauth_links_user_provider").
			Column("user_id", "provider").
			Exec(ctx); err != nil {
			return fmt.Errorf("create user provider index: %w", err)
		}

		return nil
	})
}

// down_20260301000000 drops the account tables.
func down_20260301000000(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{
		(*models.OAuthLink)(nil),
		(*models.Credential)(nil),
		(*models.User)(nil),
	} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return nil
}
