package repositories

import (
	"context"
)

// SeenStore records transaction identifiers that already triggered a forward
type SeenStore interface {
	// MarkSeen atomically records key and reports whether this was its first occurrence
	MarkSeen(ctx context.Context, key string) (bool, error)
}
