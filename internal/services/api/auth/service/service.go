// Package service contains auth workflows over the backend contract
package service

import (
	"context"

	backend "backplane/internal/backend/domain"
	"backplane/internal/core/record"
	perr "backplane/internal/platform/errors"
)

// Service is the auth workflow surface the HTTP layer binds to
type Service interface {
	SignUp(ctx context.Context, creds backend.Credentials) (*backend.Session, error)
	SignIn(ctx context.Context, email, password string) (*backend.Session, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	Me(ctx context.Context, userID string) (record.Record, error)
	VerifyToken(token string) (string, error)
}

// Svc implements the Service interface
type Svc struct {
	auth backend.AuthPort
	db   backend.DatabasePort
}

// New creates a new auth service
func New(auth backend.AuthPort, db backend.DatabasePort) *Svc {
	if auth == nil {
		panic("auth.Service requires a non nil AuthPort")
	}
	if db == nil {
		panic("auth.Service requires a non nil DatabasePort")
	}
	return &Svc{auth: auth, db: db}
}

// SignUp registers a new account and returns its first session
func (s *Svc) SignUp(ctx context.Context, creds backend.Credentials) (*backend.Session, error) {
	return s.auth.SignUp(ctx, creds)
}

// SignIn starts a session for an existing account
func (s *Svc) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	return s.auth.SignIn(ctx, email, password)
}

// SignOut ends the current session
func (s *Svc) SignOut(ctx context.Context) error {
	return s.auth.SignOut(ctx)
}

// ResetPassword requests a password reset; unknown emails succeed silently
func (s *Svc) ResetPassword(ctx context.Context, email string) error {
	return s.auth.ResetPassword(ctx, email)
}

// Me returns the user record behind an authenticated request
func (s *Svc) Me(ctx context.Context, userID string) (record.Record, error) {
	rec, err := s.db.Get(ctx, "user", userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, perr.NotFoundf("user %s not found", userID)
	}
	return rec, nil
}

// VerifyToken resolves a bearer token to its user id
func (s *Svc) VerifyToken(token string) (string, error) {
	return s.auth.VerifyToken(token)
}
