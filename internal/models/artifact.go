package models

import "time"

// Artifact is a listing that was saved to disk.
type Artifact struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Path      string    `json:"path" db:"path"`
	Source    string    `json:"source" db:"source"`
	Mode      Mode      `json:"mode" db:"mode"`
	Charset   bool      `json:"charset" db:"charset"`
	Size      int64     `json:"size" db:"size"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Listing is the indexed form of a saved artifact used by the catalog.
type Listing struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mode   string `json:"mode"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// CatalogHit is a single catalog search result.
type CatalogHit struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
