// Package services – AuthService
//
// AuthService manages dashboard accounts. Passwords are stored as bcrypt
// hashes; Login compares in constant time through bcrypt.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/domain"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 4

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// AuthService creates users and verifies credentials.
type AuthService struct {
	DB *gorm.DB
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

// CreateUser registers a user with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, username, password, websiteURL string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if !usernameRE.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}
	websiteURL = strings.TrimSpace(websiteURL)
	if websiteURL != "" {
		if _, err := normalizeURL(websiteURL); err != nil {
			return nil, err
		}
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, err
	}
	u, err := repo.CreateUser(ctx, s.DB, username, string(hash), websiteURL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrUserExists
	}
	return u, err
}

// Login returns the user when the password matches.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, strings.TrimSpace(username))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Exists reports whether username is a registered user.
func (s *AuthService) Exists(ctx context.Context, username string) (bool, error) {
	_, err := repo.GetUser(ctx, s.DB, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repo.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
