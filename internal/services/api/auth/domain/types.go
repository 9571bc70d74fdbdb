// Package domain defines wire types for the auth API
package domain

import (
	backend "backplane/internal/backend/domain"
)

// SignUpInput carries sign-up credentials; validation rules live on the
// backend Credentials type
type SignUpInput = backend.Credentials

// SignInInput carries sign-in credentials
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetInput names the account to reset
type ResetInput struct {
	Email string `json:"email"`
}
