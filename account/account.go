package account

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by stores when the requested row does not exist.
	ErrNotFound = errors.New("account record not found")
	// ErrDuplicate is returned by stores when an insert trips a unique constraint.
	ErrDuplicate = errors.New("account record already exists")
)

// Status is the lifecycle state of a user.
type Status string

const (
	// StatusActive users may authenticate.
	StatusActive Status = "active"
	// StatusDisabled users are rejected at login, refresh and OAuth resolution.
	StatusDisabled Status = "disabled"
)

// User is the local account. Email is unique and stored normalized.
type User struct {
	ID        string
	Email     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the user may authenticate.
func (u User) Active() bool {
	return u.Status == StatusActive
}

// Credential carries the optional password hash of a user. An empty hash means
// the account was created through a third-party identity and has no password.
type Credential struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// HasPassword reports whether password login is possible.
func (c Credential) HasPassword() bool {
	return c.PasswordHash != ""
}

// OAuthLink attaches one provider identity to one user.
//
// (Provider, ProviderUserID) is unique across all users and (UserID, Provider)
// is unique per user.
type OAuthLink struct {
	ID             string
	Provider       string
	ProviderUserID string
	UserID         string
	Email          string
	Name           string
	AvatarURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewID returns a time-sortable identifier for primary keys.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NormalizeEmail trims and lower-cases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
