// Package products owns the product catalog and a local copy of each
// category's name and slug, kept current by category.upserted events and by
// an explicit resync pass.
package products

import "time"

type Product struct {
	ID              string    `json:"id" dynamodbav:"id"` // PK
	Name            string    `json:"name" dynamodbav:"name"`
	Description     string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Price           float64   `json:"price" dynamodbav:"price"`
	Stock           int       `json:"stock" dynamodbav:"stock"`
	CategoryID      string    `json:"categoryId" dynamodbav:"category_id"` // GSI category_id-index
	CategoryName    string    `json:"categoryName" dynamodbav:"category_name"`
	CategorySlug    string    `json:"categorySlug" dynamodbav:"category_slug"`
	// CategoryVersion is the category's updated_at, in Unix nanoseconds, at
	// the time the copy was taken.
	CategoryVersion int64     `json:"-" dynamodbav:"category_version,omitempty"`
	IsActive        bool      `json:"isActive" dynamodbav:"is_active"`
	CreatedAt       time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// Snapshot is the stored copy of a category.
type Snapshot struct {
	ID        string    `json:"id" dynamodbav:"id"` // PK, the category id
	Name      string    `json:"name" dynamodbav:"name"`
	Slug      string    `json:"slug" dynamodbav:"slug"`
	Version   int64     `json:"-" dynamodbav:"source_version,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// versionOf orders category snapshots. The zero time sorts first.
func versionOf(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// SnapshotReport is the data of a sync_category_snapshot reply.
type SnapshotReport struct {
	CategoryID      string `json:"categoryId"`
	SnapshotChanged bool   `json:"snapshotChanged"`
	ProductsUpdated int    `json:"productsUpdated"`
	// Stale is set when a newer snapshot was already applied; nothing was
	// written.
	Stale bool `json:"stale,omitempty"`
}

// ResyncReport summarizes one resync pass.
type ResyncReport struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}
