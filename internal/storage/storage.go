// Package storage persists the history of saved listings.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/tapeview/internal/models"
)

// ErrNotFound is returned when an artifact id is unknown.
var ErrNotFound = errors.New("artifact not found")

// History records saved artifacts.
type History interface {
	Record(ctx context.Context, a *models.Artifact) error
	Get(ctx context.Context, id string) (*models.Artifact, error)
	List(ctx context.Context, offset, limit int) ([]*models.Artifact, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
