package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/somiwear/closet/internal/domain"
	"github.com/somiwear/closet/internal/service"
	"github.com/somiwear/closet/internal/view"
)

// OutfitHandler handles saving, loading, and listing outfit slots.
type OutfitHandler struct {
	outfits *service.OutfitService
}

// NewOutfitHandler creates a new OutfitHandler.
func NewOutfitHandler(outfits *service.OutfitService) *OutfitHandler {
	return &OutfitHandler{outfits: outfits}
}

// HandleSaved renders the saved-outfits page with one preview per slot.
// GET /saved
func (h *OutfitHandler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	snapshots, err := h.outfits.Saved(r.Context(), user.ID)
	if err != nil {
		slog.Error("list saved outfits", "error", err, "user", user.ID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := view.SavedData{UserID: user.ID}
	for slot := service.MinSlot; slot <= service.MaxSlot; slot++ {
		data.Slots = append(data.Slots, view.SlotPreview{Slot: slot, Snapshot: snapshots[slot]})
	}
	if err := view.Saved(w, data); err != nil {
		slog.Error("render saved page", "error", err)
	}
}

// HandleSave upserts the outfit for a slot.
// POST /save_outfit
// Request: {"slot": 3, "state": "...", "snapshot": "data:image/png;base64,..."}
func (h *OutfitHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		Slot     int    `json:"slot"`
		State    string `json:"state"`
		Snapshot string `json:"snapshot"`
	}
	if err := readJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.outfits.Save(r.Context(), user.ID, req.Slot, req.State, req.Snapshot); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("save outfit", "error", err, "user", user.ID, "slot", req.Slot)
		writeFailure(w, http.StatusInternalServerError, "Could not save outfit.")
		return
	}

	writeSuccess(w, nil)
}

// HandleLoad returns the stored canvas state for a slot.
// GET /load_outfit/{slot}
func (h *OutfitHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid slot.")
		return
	}

	state, err := h.outfits.Load(r.Context(), user.ID, slot)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "No outfit saved in this slot.")
		case errors.Is(err, domain.ErrInvalidInput):
			writeFailure(w, http.StatusBadRequest, "Invalid slot.")
		default:
			slog.Error("load outfit", "error", err, "user", user.ID, "slot", slot)
			writeFailure(w, http.StatusInternalServerError, "Could not load outfit.")
		}
		return
	}

	writeSuccess(w, map[string]any{"state": state})
}

// HandleDelete clears a slot, removing the row and its snapshot.
// POST /delete_outfit
// Request: {"slot": 3}
func (h *OutfitHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		Slot int `json:"slot"`
	}
	if err := readJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.outfits.Delete(r.Context(), user.ID, req.Slot); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "No outfit saved in this slot.")
		case errors.Is(err, domain.ErrInvalidInput):
			writeFailure(w, http.StatusBadRequest, "Invalid slot.")
		default:
			slog.Error("delete outfit", "error", err, "user", user.ID, "slot", req.Slot)
			writeFailure(w, http.StatusInternalServerError, "Could not delete outfit.")
		}
		return
	}

	writeSuccess(w, nil)
}
