// Package users keeps the profile copy of every account. Profiles share
// their id with the auth credential and are created by sync, never directly.
package users

import "time"

type Profile struct {
	ID            string    `json:"id" dynamodbav:"id"` // PK, the auth user id
	Email         string    `json:"email" dynamodbav:"email"`
	Name          string    `json:"name" dynamodbav:"name"`
	Role          string    `json:"role" dynamodbav:"role"`
	Phone         string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Address       string    `json:"address,omitempty" dynamodbav:"address,omitempty"`
	// SourceVersion is the credential's updated_at, in Unix nanoseconds, of
	// the last sync applied.
	SourceVersion int64     `json:"-" dynamodbav:"source_version,omitempty"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// SyncOutcome says what a sync did to the stored profile.
type SyncOutcome string

const (
	SyncCreated   SyncOutcome = "created"
	SyncUpdated   SyncOutcome = "updated"
	SyncUnchanged SyncOutcome = "unchanged"
	SyncStale     SyncOutcome = "stale"
)
