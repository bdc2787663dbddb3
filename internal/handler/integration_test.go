package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/somiwear/closet/internal/handler"
	"github.com/somiwear/closet/internal/imaging"
	"github.com/somiwear/closet/internal/repository/sqlite"
	"github.com/somiwear/closet/internal/service"
	"github.com/somiwear/closet/internal/storage"
)

const testSecret = "integration-test-secret-0123456789"

// newTestServer wires the full stack against a temp database and upload
// root, with a limiter generous enough not to interfere.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := storage.NewDisk(t.TempDir())
	auth := service.NewAuthService(db.Users(), testSecret, 4)
	wardrobe := service.NewWardrobeService(files, imaging.JPEGNormalizer{}, imaging.NewBorderSegmenter(), 0)
	outfits := service.NewOutfitService(db.Outfits(), files)
	limiter := service.NewTokenBucket(100, 100)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth, wardrobe, outfits, limiter, false)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newClient returns a cookie-carrying client that does not follow
// redirects, so tests can assert on 303 responses directly.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, c *http.Client, rawURL string, values url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(rawURL, values)
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postJSON(t *testing.T, c *http.Client, rawURL string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := c.Post(rawURL, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, c *http.Client, rawURL string) *http.Response {
	t.Helper()
	resp, err := c.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func wantRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func decodeResult(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

// signUp registers and logs in a fresh account, leaving the session
// cookie in the client's jar.
func signUp(t *testing.T, c *http.Client, baseURL, username string) {
	t.Helper()
	resp := postForm(t, c, baseURL+"/register", url.Values{
		"username": {username},
		"password": {"password123"},
	})
	wantRedirect(t, resp, "/login?registered=1")

	resp = postForm(t, c, baseURL+"/login", url.Values{
		"username": {username},
		"password": {"password123"},
	})
	wantRedirect(t, resp, "/home")
}

// subjectPNG is a blue backdrop with a red square in the middle, small
// enough to keep the segmentation fast.
func subjectPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	blue := color.RGBA{30, 60, 200, 255}
	red := color.RGBA{220, 30, 30, 255}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, blue)
		}
	}
	for y := 8; y < 24; y++ {
		for x := 8; x < 24; x++ {
			img.SetRGBA(x, y, red)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func uploadFile(t *testing.T, c *http.Client, baseURL, filename string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	resp, err := c.Post(baseURL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	signUp(t, c, srv.URL, "alice")

	// The session cookie now opens the closet.
	resp := get(t, c, srv.URL+"/home")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /home after login: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "alice") {
		t.Fatal("expected home page to greet the user")
	}

	// Visiting the login page while authenticated skips the form.
	wantRedirect(t, get(t, c, srv.URL+"/login"), "/home")

	wantRedirect(t, postForm(t, c, srv.URL+"/logout", nil), "/login")
	wantRedirect(t, get(t, c, srv.URL+"/home"), "/login")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	signUp(t, c, srv.URL, "alice")

	resp := postForm(t, newClient(t), srv.URL+"/register", url.Values{
		"username": {"alice"},
		"password": {"different456"},
	})
	wantRedirect(t, resp, "/register?error=exists")
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	signUp(t, c, srv.URL, "alice")

	resp := postForm(t, newClient(t), srv.URL+"/login", url.Values{
		"username": {"alice"},
		"password": {"wrongpassword"},
	})
	wantRedirect(t, resp, "/login?error=1")

	// Unknown accounts get the same answer as bad passwords.
	resp = postForm(t, newClient(t), srv.URL+"/login", url.Values{
		"username": {"ghost"},
		"password": {"password123"},
	})
	wantRedirect(t, resp, "/login?error=1")
}

func TestLogin_RateLimited(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := storage.NewDisk(t.TempDir())
	auth := service.NewAuthService(db.Users(), testSecret, 4)
	wardrobe := service.NewWardrobeService(files, imaging.JPEGNormalizer{}, imaging.NewBorderSegmenter(), 0)
	outfits := service.NewOutfitService(db.Outfits(), files)
	// A single-shot limiter with negligible refill.
	limiter := service.NewTokenBucket(0.0001, 1)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth, wardrobe, outfits, limiter, false)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newClient(t)
	creds := url.Values{"username": {"ghost"}, "password": {"password123"}}

	wantRedirect(t, postForm(t, c, srv.URL+"/login", creds), "/login?error=1")
	wantRedirect(t, postForm(t, c, srv.URL+"/login", creds), "/login?error=rate")
}

func TestUploadServeDelete(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	signUp(t, c, srv.URL, "alice")

	wantRedirect(t, uploadFile(t, c, srv.URL, "shirt.png", subjectPNG(t)), "/home")

	// The listing on the home page references the file.
	resp := get(t, c, srv.URL+"/home")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "shirt.png") {
		t.Fatal("expected uploaded file in the wardrobe listing")
	}

	// The owner can fetch it.
	resp = get(t, c, srv.URL+"/uploads/1/shirt.png")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET own upload: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}

	// Another user's namespace is refused outright.
	resp = get(t, c, srv.URL+"/uploads/999/shirt.png")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("GET foreign upload: expected 400, got %d", resp.StatusCode)
	}

	// Delete, then the file is gone.
	resp = postJSON(t, c, srv.URL+"/delete_image", map[string]string{"filename": "shirt.png"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete_image: %d", resp.StatusCode)
	}
	if body := decodeResult(t, resp); body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}

	resp = get(t, c, srv.URL+"/uploads/1/shirt.png")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET deleted upload: expected 404, got %d", resp.StatusCode)
	}

	resp = postJSON(t, c, srv.URL+"/delete_image", map[string]string{"filename": "shirt.png"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestUpload_Rejections(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	signUp(t, c, srv.URL, "alice")

	resp := uploadFile(t, c, srv.URL, "notes.txt", []byte("hello"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("txt upload: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, c, srv.URL+"/delete_image", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete without filename: expected 400, got %d", resp.StatusCode)
	}
}

func TestRemoveBackground(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	signUp(t, c, srv.URL, "alice")

	wantRedirect(t, uploadFile(t, c, srv.URL, "shirt.png", subjectPNG(t)), "/home")

	resp := postJSON(t, c, srv.URL+"/remove_bg", map[string]string{"filename": "shirt.png"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove_bg: %d", resp.StatusCode)
	}
	if body := decodeResult(t, resp); body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}

	// The file survives in place, now re-encoded as JPEG.
	resp = get(t, c, srv.URL+"/uploads/1/shirt.png")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET processed upload: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg after processing, got %s", ct)
	}

	// A missing file yields a structured 404, not a crash.
	resp = postJSON(t, c, srv.URL+"/remove_bg", map[string]string{"filename": "ghost.png"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("remove_bg on missing file: expected 404, got %d", resp.StatusCode)
	}
	body := decodeResult(t, resp)
	if body["success"] != false || body["error"] == "" {
		t.Fatalf("expected structured failure, got %v", body)
	}
}

func TestOutfitSlots(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	signUp(t, c, srv.URL, "alice")

	state := `{"items":[{"src":"/uploads/1/shirt.png","left":"10px","top":"20px"}]}`
	snapshot := "data:image/png;base64," + base64.StdEncoding.EncodeToString(subjectPNG(t))

	resp := postJSON(t, c, srv.URL+"/save_outfit", map[string]any{
		"slot": 3, "state": state, "snapshot": snapshot,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save_outfit: %d", resp.StatusCode)
	}

	// The stored state comes back byte for byte.
	resp = get(t, c, srv.URL+"/load_outfit/3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load_outfit: %d", resp.StatusCode)
	}
	body := decodeResult(t, resp)
	if body["success"] != true || body["state"] != state {
		t.Fatalf("expected exact state roundtrip, got %v", body)
	}

	// The snapshot is served from the user's snapshot area.
	resp = get(t, c, srv.URL+"/snapshots/1/slot_3.png")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET snapshot: %d", resp.StatusCode)
	}

	// The saved page shows the occupied slot.
	resp = get(t, c, srv.URL+"/saved")
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "slot_3.png") {
		t.Fatal("expected saved page to reference the slot snapshot")
	}

	// Empty slots 404.
	resp = get(t, c, srv.URL+"/load_outfit/5")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("load empty slot: expected 404, got %d", resp.StatusCode)
	}

	// Out-of-range slots are rejected.
	for _, slot := range []int{0, 10} {
		resp := postJSON(t, c, srv.URL+"/save_outfit", map[string]any{
			"slot": slot, "state": state,
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("save slot %d: expected 400, got %d", slot, resp.StatusCode)
		}
	}

	// Delete clears the slot and its snapshot.
	resp = postJSON(t, c, srv.URL+"/delete_outfit", map[string]any{"slot": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete_outfit: %d", resp.StatusCode)
	}
	resp = get(t, c, srv.URL+"/load_outfit/3")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("load deleted slot: expected 404, got %d", resp.StatusCode)
	}
	resp = get(t, c, srv.URL+"/snapshots/1/slot_3.png")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET deleted snapshot: expected 404, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	// Page routes redirect to the login form.
	for _, path := range []string{"/home", "/saved"} {
		wantRedirect(t, get(t, c, srv.URL+path), "/login")
	}

	// JSON routes answer 401.
	jsonPosts := []string{"/delete_image", "/remove_bg", "/save_outfit", "/delete_outfit"}
	for _, path := range jsonPosts {
		resp := postJSON(t, c, srv.URL+path, map[string]any{})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("POST %s unauthenticated: expected 401, got %d", path, resp.StatusCode)
		}
	}
	for _, path := range []string{"/uploads/1/shirt.png", "/snapshots/1/slot_1.png", "/load_outfit/1"} {
		resp := get(t, c, srv.URL+path)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s unauthenticated: expected 401, got %d", path, resp.StatusCode)
		}
	}
}

func TestUsersAreIsolated(t *testing.T) {
	srv := newTestServer(t)

	alice := newClient(t)
	signUp(t, alice, srv.URL, "alice")
	wantRedirect(t, uploadFile(t, alice, srv.URL, "shirt.png", subjectPNG(t)), "/home")

	bob := newClient(t)
	signUp(t, bob, srv.URL, "bob")

	// Bob cannot read Alice's image through her namespace.
	resp := get(t, bob, srv.URL+"/uploads/1/shirt.png")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cross-user read: expected 400, got %d", resp.StatusCode)
	}

	// Bob's own listing is empty.
	resp = get(t, bob, srv.URL+"/home")
	page, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(page), "shirt.png") {
		t.Fatal("expected bob's wardrobe to be empty")
	}

	// Slots are scoped too: bob saving slot 1 does not touch alice's.
	state := func(owner string) string { return fmt.Sprintf(`{"owner":%q}`, owner) }
	postJSON(t, alice, srv.URL+"/save_outfit", map[string]any{"slot": 1, "state": state("alice")})
	postJSON(t, bob, srv.URL+"/save_outfit", map[string]any{"slot": 1, "state": state("bob")})

	resp = get(t, alice, srv.URL+"/load_outfit/1")
	if body := decodeResult(t, resp); body["state"] != state("alice") {
		t.Fatalf("expected alice's state untouched, got %v", body)
	}
}
