// Package view renders the server-side HTML pages. The pages are thin:
// all canvas interaction happens client-side against the JSON endpoints.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var files embed.FS

var templates = template.Must(template.ParseFS(files, "templates/*.html"))

// LoginData feeds the login page.
type LoginData struct {
	Error string
}

// RegisterData feeds the registration page.
type RegisterData struct {
	Error string
}

// HomeData feeds the canvas page with the user's wardrobe listing.
type HomeData struct {
	Username string
	UserID   int64
	Files    []string
}

// SlotPreview pairs a slot number with its snapshot filename, if any.
type SlotPreview struct {
	Slot     int
	Snapshot string
}

// SavedData feeds the saved-outfits page.
type SavedData struct {
	UserID int64
	Slots  []SlotPreview
}

func render(w io.Writer, name string, data any) error {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

func Login(w io.Writer, data LoginData) error       { return render(w, "login.html", data) }
func Register(w io.Writer, data RegisterData) error { return render(w, "register.html", data) }
func Home(w io.Writer, data HomeData) error         { return render(w, "home.html", data) }
func Saved(w io.Writer, data SavedData) error       { return render(w, "saved.html", data) }
