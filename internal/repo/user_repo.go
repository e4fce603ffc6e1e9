// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/domain"
)

// CreateUser inserts a user row. It returns ErrDuplicate if the username is taken.
func CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash, websiteURL string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		Username:     username,
		PasswordHash: passwordHash,
		WebsiteURL:   websiteURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by username, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
