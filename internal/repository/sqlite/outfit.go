package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/somiwear/closet/internal/domain"
)

// OutfitRepository implements domain.OutfitRepository using SQLite.
type OutfitRepository struct {
	db *sql.DB
}

// NewOutfitRepository creates a new SQLite-backed OutfitRepository.
func NewOutfitRepository(db *DB) *OutfitRepository {
	return &OutfitRepository{db: db.SqlDB}
}

// Upsert writes the outfit as a single INSERT ... ON CONFLICT statement so
// the save is atomic and the (user_id, slot) unique key can never yield a
// duplicate row, whatever slot value the caller supplies. A nil Snapshot
// leaves any previously stored snapshot name in place.
func (r *OutfitRepository) Upsert(ctx context.Context, outfit *domain.Outfit) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO outfits (user_id, slot, state, snapshot, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, slot) DO UPDATE SET
		   state = excluded.state,
		   snapshot = COALESCE(excluded.snapshot, outfits.snapshot),
		   updated_at = excluded.updated_at`,
		outfit.UserID, outfit.Slot, outfit.State, outfit.Snapshot, now,
	)
	if err != nil {
		return fmt.Errorf("upsert outfit: %w", err)
	}

	outfit.UpdatedAt = now
	if id, err := result.LastInsertId(); err == nil && id != 0 {
		outfit.ID = id
	}
	return nil
}

func (r *OutfitRepository) GetBySlot(ctx context.Context, userID int64, slot int) (*domain.Outfit, error) {
	outfit := &domain.Outfit{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, slot, state, snapshot, updated_at
		 FROM outfits WHERE user_id = ? AND slot = ?`, userID, slot,
	).Scan(&outfit.ID, &outfit.UserID, &outfit.Slot, &outfit.State, &outfit.Snapshot, &outfit.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query outfit by slot: %w", err)
	}
	return outfit, nil
}

func (r *OutfitRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Outfit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, slot, state, snapshot, updated_at
		 FROM outfits WHERE user_id = ? ORDER BY slot`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query outfits by user: %w", err)
	}
	defer rows.Close()

	var outfits []domain.Outfit
	for rows.Next() {
		var o domain.Outfit
		if err := rows.Scan(&o.ID, &o.UserID, &o.Slot, &o.State, &o.Snapshot, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outfit: %w", err)
		}
		outfits = append(outfits, o)
	}
	return outfits, rows.Err()
}

func (r *OutfitRepository) DeleteBySlot(ctx context.Context, userID int64, slot int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outfits WHERE user_id = ? AND slot = ?`, userID, slot,
	)
	if err != nil {
		return fmt.Errorf("delete outfit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
