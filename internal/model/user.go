// Package model defines data structures exchanged with the chat backend.
package model

// User is the identity snapshot returned by the backend. It is never
// mutated locally; a fresh probe replaces it wholesale.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name,omitempty"`
	IsActive    bool   `json:"is_active,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
	IsVerified  bool   `json:"is_verified,omitempty"`
}

// RegisterRequest is the payload to create a new account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Token is the response to a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
