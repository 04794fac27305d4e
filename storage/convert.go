package storage

import (
	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/storage/models"
)

func toUser(row *models.User) *account.User {
	return &account.User{
		ID:        row.ID,
		Email:     row.Email,
		Status:    account.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func fromUser(u *account.User) *models.User {
	status := u.Status
	if status == "" {
		status = account.StatusActive
	}
	return &models.User{
		ID:        u.ID,
		Email:     u.Email,
		Status:    string(status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toCredential(row *models.Credential) *account.Credential {
	c := &account.Credential{UserID: row.UserID, UpdatedAt: row.UpdatedAt}
	if row.PasswordHash != nil {
		c.PasswordHash = *row.PasswordHash
	}
	return c
}

func toLink(row *models.OAuthLink) *account.OAuthLink {
	return &account.OAuthLink{
		ID:             row.ID,
		Provider:       row.Provider,
		ProviderUserID: row.ProviderUserID,
		UserID:         row.UserID,
		Email:          row.Email,
		Name:           row.Name,
		AvatarURL:      row.AvatarURL,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func fromLink(l *account.OAuthLink) *models.OAuthLink {
	return &models.OAuthLink{
		ID:             l.ID,
		Provider:       l.Provider,
		ProviderUserID: l.ProviderUserID,
		UserID:         l.UserID,
		Email:          l.Email,
		Name:           l.Name,
		AvatarURL:      l.AvatarURL,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}
