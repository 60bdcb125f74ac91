// Package auth owns credentials. Registering writes the credential, an email
// claim and a user.registered outbox event in one transaction; the users
// service learns about the account from that event.
package auth

import (
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Credential is the item stored in the credentials table.
type Credential struct {
	ID           string    `dynamodbav:"id"` // PK
	Email        string    `dynamodbav:"email"`
	Name         string    `dynamodbav:"name"`
	Role         string    `dynamodbav:"role"`
	PasswordHash string    `dynamodbav:"password_hash"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

// User is the public view of a credential.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (c *Credential) user() User {
	return User{ID: c.ID, Email: c.Email, Name: c.Name, Role: c.Role}
}

// profile is the user.registered payload.
func (c *Credential) profile() validation.SyncProfileRequest {
	return validation.SyncProfileRequest{ID: c.ID, Email: c.Email, Name: c.Name, Role: c.Role, UpdatedAt: c.UpdatedAt}
}

// Session is returned by register and login.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
