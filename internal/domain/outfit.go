package domain

import (
	"context"
	"time"
)

// Outfit is a saved canvas composition occupying one of a user's nine
// slots. State is an opaque serialized layout produced by the client;
// Snapshot, when set, names a preview PNG in the user's snapshot area.
type Outfit struct {
	ID        int64
	UserID    int64
	Slot      int
	State     string
	Snapshot  *string
	UpdatedAt time.Time
}

// OutfitRepository defines persistence operations for outfits.
// At most one row exists per (user, slot) pair.
type OutfitRepository interface {
	// Upsert inserts the outfit or, if a row already exists for
	// (UserID, Slot), overwrites its state and snapshot in place.
	Upsert(ctx context.Context, outfit *Outfit) error
	GetBySlot(ctx context.Context, userID int64, slot int) (*Outfit, error)
	ListByUser(ctx context.Context, userID int64) ([]Outfit, error)
	DeleteBySlot(ctx context.Context, userID int64, slot int) error
}
