// Package categories owns the category catalog. Every create or update that
// changes what products display is published as a category.upserted event.
package categories

import (
	"regexp"
	"strings"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

type Category struct {
	ID          string    `json:"id" dynamodbav:"id"` // PK
	Name        string    `json:"name" dynamodbav:"name"`
	Slug        string    `json:"slug" dynamodbav:"slug"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	IsActive    bool      `json:"isActive" dynamodbav:"is_active"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// Snapshot is the part of a category products copy.
func (c *Category) Snapshot() validation.CategorySnapshotRequest {
	return validation.CategorySnapshotRequest{ID: c.ID, Name: c.Name, Slug: c.Slug, UpdatedAt: c.UpdatedAt}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and collapses every run of other characters into a
// single dash, trimming dashes at both ends.
func Slugify(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
