package handler

import (
	"net/http"

	"github.com/somiwear/closet/internal/service"
	"github.com/somiwear/closet/web"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(
	mux *http.ServeMux,
	auth *service.AuthService,
	wardrobe *service.WardrobeService,
	outfits *service.OutfitService,
	limiter *service.TokenBucket,
	cookieSecure bool,
) {
	authHandler := NewAuthHandler(auth, limiter, cookieSecure)
	wardrobeHandler := NewWardrobeHandler(wardrobe)
	outfitHandler := NewOutfitHandler(outfits)

	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Public pages. OptionalAuth lets an existing session skip straight
	// to the closet.
	mux.Handle("GET /{$}", OptionalAuth(auth, http.HandlerFunc(authHandler.HandleIndex)))
	mux.Handle("GET /login", OptionalAuth(auth, http.HandlerFunc(authHandler.HandleLoginPage)))
	mux.Handle("GET /register", OptionalAuth(auth, http.HandlerFunc(authHandler.HandleRegisterPage)))
	mux.HandleFunc("POST /login", authHandler.HandleLogin)
	mux.HandleFunc("POST /register", authHandler.HandleRegister)
	mux.HandleFunc("POST /logout", authHandler.HandleLogout)

	// Pages behind a session; unauthenticated visitors go to /login.
	mux.Handle("GET /home", RequirePage(auth, http.HandlerFunc(wardrobeHandler.HandleHome)))
	mux.Handle("GET /saved", RequirePage(auth, http.HandlerFunc(outfitHandler.HandleSaved)))

	// Image pipeline.
	mux.Handle("POST /upload", RequirePage(auth, http.HandlerFunc(wardrobeHandler.HandleUpload)))
	mux.Handle("GET /uploads/{userID}/{filename}", RequireAuth(auth, http.HandlerFunc(wardrobeHandler.HandleServeUpload)))
	mux.Handle("GET /snapshots/{userID}/{filename}", RequireAuth(auth, http.HandlerFunc(wardrobeHandler.HandleServeSnapshot)))
	mux.Handle("POST /delete_image", RequireAuth(auth, http.HandlerFunc(wardrobeHandler.HandleDeleteImage)))
	mux.Handle("POST /remove_bg", RequireAuth(auth, http.HandlerFunc(wardrobeHandler.HandleRemoveBG)))

	// Outfit slots.
	mux.Handle("POST /save_outfit", RequireAuth(auth, http.HandlerFunc(outfitHandler.HandleSave)))
	mux.Handle("GET /load_outfit/{slot}", RequireAuth(auth, http.HandlerFunc(outfitHandler.HandleLoad)))
	mux.Handle("POST /delete_outfit", RequireAuth(auth, http.HandlerFunc(outfitHandler.HandleDelete)))
}
