// Package models holds the bun row types of the relational store.
package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a row of the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,notnull,unique"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Credential is a row of the credentials table. A NULL hash marks an account
// without password login.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	UserID       string    `bun:"user_id,pk"`
	PasswordHash *string   `bun:"password_hash"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// OAuthLink is a row of the oauth_links table.
type OAuthLink struct {
	bun.BaseModel `bun:"table:oauth_links,alias:l"`

	ID             string    `bun:"id,pk"`
	Provider       string    `bun:"provider,notnull"`
	ProviderUserID string    `bun:"provider_user_id,notnull"`
	UserID         string    `bun:"user_id,notnull"`
	Email          string    `bun:"email"`
	Name           string    `bun:"name"`
	AvatarURL      string    `bun:"avatar_url"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}
