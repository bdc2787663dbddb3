package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/somiwear/closet/internal/domain"
	"github.com/somiwear/closet/internal/service"
	"github.com/somiwear/closet/internal/view"
)

// WardrobeHandler handles the image pipeline routes: upload, serve,
// delete, and background removal.
type WardrobeHandler struct {
	wardrobe *service.WardrobeService
}

// NewWardrobeHandler creates a new WardrobeHandler.
func NewWardrobeHandler(wardrobe *service.WardrobeService) *WardrobeHandler {
	return &WardrobeHandler{wardrobe: wardrobe}
}

// HandleHome renders the canvas page with the caller's wardrobe listing.
// GET /home
func (h *WardrobeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	files, err := h.wardrobe.List(user.ID)
	if err != nil {
		slog.Error("list wardrobe", "error", err, "user", user.ID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := view.HomeData{Username: user.Username, UserID: user.ID, Files: files}
	if err := view.Home(w, data); err != nil {
		slog.Error("render home page", "error", err)
	}
}

// HandleUpload processes a multipart image upload.
// POST /upload
func (h *WardrobeHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	// Reject oversized bodies before buffering them. The small slack
	// covers multipart framing around the file itself.
	maxBytes := h.wardrobe.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+4096)

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	if _, err := h.wardrobe.Upload(r.Context(), user.ID, header.Filename, data); err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) || errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("upload file", "error", err, "user", user.ID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// HandleServeUpload streams a stored image to its owner.
// GET /uploads/{userID}/{filename}
func (h *WardrobeHandler) HandleServeUpload(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.wardrobe.Read)
}

// HandleServeSnapshot streams an outfit preview to its owner.
// GET /snapshots/{userID}/{filename}
func (h *WardrobeHandler) HandleServeSnapshot(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.wardrobe.ReadSnapshot)
}

func (h *WardrobeHandler) serveFile(w http.ResponseWriter, r *http.Request, read func(int64, string, int64) ([]byte, error)) {
	user := UserFromContext(r.Context())

	ownerID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	data, err := read(ownerID, r.PathValue("filename"), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			// Another user's namespace; reject at the boundary.
			http.Error(w, "Bad Request", http.StatusBadRequest)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Not Found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, "Bad Request", http.StatusBadRequest)
		default:
			slog.Error("serve file", "error", err, "user", user.ID)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// HandleDeleteImage deletes a file from the caller's own area.
// POST /delete_image
func (h *WardrobeHandler) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		Filename string `json:"filename"`
	}
	if err := readJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Filename == "" {
		writeFailure(w, http.StatusBadRequest, "No filename provided.")
		return
	}

	if err := h.wardrobe.Delete(user.ID, req.Filename); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "File not found.")
		case errors.Is(err, domain.ErrInvalidInput):
			writeFailure(w, http.StatusBadRequest, "Invalid filename.")
		default:
			slog.Error("delete file", "error", err, "user", user.ID)
			writeFailure(w, http.StatusInternalServerError, "Could not delete file.")
		}
		return
	}

	writeSuccess(w, nil)
}

// HandleRemoveBG runs background removal on one of the caller's files,
// replacing it in place on success. Failures never escape as unhandled
// faults; the client always receives a structured result.
// POST /remove_bg
func (h *WardrobeHandler) HandleRemoveBG(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		Filename string `json:"filename"`
	}
	if err := readJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Filename == "" {
		writeFailure(w, http.StatusBadRequest, "No filename provided.")
		return
	}

	if err := h.wardrobe.RemoveBackground(r.Context(), user.ID, req.Filename); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "File not found.")
		case errors.Is(err, domain.ErrInvalidInput):
			writeFailure(w, http.StatusBadRequest, "Invalid filename.")
		default:
			slog.Error("remove background", "error", err, "user", user.ID, "file", req.Filename)
			writeFailure(w, http.StatusInternalServerError, "Background removal failed.")
		}
		return
	}

	writeSuccess(w, nil)
}
