package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/somiwear/closet/internal/domain"
)

const (
	// MinSlot and MaxSlot bound the nine fixed save positions.
	MinSlot = 1
	MaxSlot = 9
)

// OutfitService persists canvas compositions into per-user slots and
// stores preview snapshots as files alongside the user's uploads, keeping
// large binary payloads out of the relational store.
type OutfitService struct {
	outfits domain.OutfitRepository
	files   domain.FileArea
}

// NewOutfitService creates a new OutfitService.
func NewOutfitService(outfits domain.OutfitRepository, files domain.FileArea) *OutfitService {
	return &OutfitService{outfits: outfits, files: files}
}

func validSlot(slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return fmt.Errorf("%w: slot must be between %d and %d", domain.ErrInvalidInput, MinSlot, MaxSlot)
	}
	return nil
}

func snapshotName(slot int) string {
	return fmt.Sprintf("slot_%d.png", slot)
}

// Save upserts the outfit for (user, slot). The state string is opaque.
// A snapshot, when present, must be a data:image/...;base64 payload; it is
// decoded and written to the user's snapshot area before the row is
// upserted, so a malformed snapshot fails the save without touching the
// stored state.
func (s *OutfitService) Save(ctx context.Context, userID int64, slot int, state, snapshot string) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if state == "" {
		return fmt.Errorf("%w: missing state", domain.ErrInvalidInput)
	}

	var snapName *string
	if snapshot != "" {
		data, err := decodeSnapshot(snapshot)
		if err != nil {
			return fmt.Errorf("%w: snapshot decode failed: %v", domain.ErrInvalidInput, err)
		}
		name := snapshotName(slot)
		if err := s.files.SaveSnapshot(userID, name, data); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		snapName = &name
	}

	outfit := &domain.Outfit{
		UserID:   userID,
		Slot:     slot,
		State:    state,
		Snapshot: snapName,
	}
	if err := s.outfits.Upsert(ctx, outfit); err != nil {
		return fmt.Errorf("upsert outfit: %w", err)
	}
	return nil
}

// Load returns the stored state for (user, slot), or domain.ErrNotFound
// when the slot has never been saved.
func (s *OutfitService) Load(ctx context.Context, userID int64, slot int) (string, error) {
	if err := validSlot(slot); err != nil {
		return "", err
	}
	outfit, err := s.outfits.GetBySlot(ctx, userID, slot)
	if err != nil {
		return "", err
	}
	return outfit.State, nil
}

// Saved returns the slot → snapshot filename mapping for the user's saved
// outfits. Slots saved without a snapshot map to the empty string.
func (s *OutfitService) Saved(ctx context.Context, userID int64) (map[int]string, error) {
	outfits, err := s.outfits.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outfits: %w", err)
	}

	snapshots := make(map[int]string, len(outfits))
	for _, o := range outfits {
		name := ""
		if o.Snapshot != nil {
			name = *o.Snapshot
		}
		snapshots[o.Slot] = name
	}
	return snapshots, nil
}

// Delete removes the outfit row for (user, slot) along with its snapshot
// file. Deletion is addressed by slot only; files in the wardrobe area are
// deleted by filename through the wardrobe service, never through here.
func (s *OutfitService) Delete(ctx context.Context, userID int64, slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if err := s.outfits.DeleteBySlot(ctx, userID, slot); err != nil {
		return err
	}
	// The row is gone; a missing snapshot file is not an error.
	if err := s.files.DeleteSnapshot(userID, snapshotName(slot)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// decodeSnapshot parses a data URL of the form data:image/png;base64,....
func decodeSnapshot(snapshot string) ([]byte, error) {
	header, encoded, ok := strings.Cut(snapshot, ",")
	if !ok {
		return nil, fmt.Errorf("missing data URL separator")
	}
	if !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("not a base64 image data URL")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot payload")
	}
	return data, nil
}
