// Package store persists the launch journal.
package store

import (
	"context"
	"time"

	"github.com/ashureev/mention-launcher/internal/domain"
)

const (
	// DefaultHistoryLimit is used when a caller asks for a non-positive limit.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single history read.
	MaxHistoryLimit = 500
)

// Journal records completed launch attempts.
type Journal interface {
	// Append stores one record. A missing ID or CreatedAt is filled in.
	Append(ctx context.Context, rec *domain.LaunchRecord) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]domain.LaunchRecord, error)

	// Prune deletes records created before cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}

// ClampLimit applies the default and maximum history limits.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// Nop is a Journal that keeps nothing. It is used when no database is configured.
type Nop struct{}

func (Nop) Append(context.Context, *domain.LaunchRecord) error { return nil }

func (Nop) Recent(context.Context, int) ([]domain.LaunchRecord, error) { return nil, nil }

func (Nop) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (Nop) Ping(context.Context) error { return nil }

func (Nop) Close() error { return nil }
