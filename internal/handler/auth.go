package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/somiwear/closet/internal/domain"
	"github.com/somiwear/closet/internal/service"
	"github.com/somiwear/closet/internal/view"
)

// AuthHandler handles registration, login, and logout.
type AuthHandler struct {
	auth         *service.AuthService
	limiter      *service.TokenBucket
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, limiter *service.TokenBucket, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, limiter: limiter, cookieSecure: cookieSecure}
}

// loginErrors maps the error flag carried in the redirect query to the
// message shown on the login page.
var loginErrors = map[string]string{
	"1":    "Incorrect username or password. Please try again.",
	"rate": "Too many attempts. Please wait a moment and try again.",
}

var registerErrors = map[string]string{
	"exists":  "User already exists.",
	"invalid": "A username and a password of at least 8 characters are required.",
	"rate":    "Too many attempts. Please wait a moment and try again.",
}

// HandleIndex renders the landing/login page, or sends authenticated
// users straight to their closet.
// GET /
func (h *AuthHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r)
}

// HandleLoginPage renders the login form.
// GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request) {
	msg := loginErrors[r.URL.Query().Get("error")]
	if msg == "" && r.URL.Query().Get("registered") == "1" {
		msg = "Account created successfully. Log in below."
	}
	if err := view.Login(w, view.LoginData{Error: msg}); err != nil {
		slog.Error("render login page", "error", err)
	}
}

// HandleRegisterPage renders the registration form.
// GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	data := view.RegisterData{Error: registerErrors[r.URL.Query().Get("error")]}
	if err := view.Register(w, data); err != nil {
		slog.Error("render register page", "error", err)
	}
}

// HandleRegister processes a registration form submission.
// POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientIP(r)) {
		http.Redirect(w, r, "/register?error=rate", http.StatusSeeOther)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	_, err := h.auth.Register(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateHandle):
			http.Redirect(w, r, "/register?error=exists", http.StatusSeeOther)
		case errors.Is(err, domain.ErrInvalidInput):
			http.Redirect(w, r, "/register?error=invalid", http.StatusSeeOther)
		default:
			slog.Error("register user", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

// HandleLogin processes a login form submission and establishes the
// session cookie on success.
// POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientIP(r)) {
		http.Redirect(w, r, "/login?error=rate", http.StatusSeeOther)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	token, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
			return
		}
		slog.Error("login user", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 24 hours
	})

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
// POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
