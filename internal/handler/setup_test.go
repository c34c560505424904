package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/comments"
	"github.com/newsfront/internal/content"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/db"
	"github.com/newsfront/internal/handler"
	"github.com/newsfront/internal/router"
	"github.com/newsfront/internal/search"
	"github.com/newsfront/internal/service"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ginOnce sync.Once

// fakeContentService 模拟内容服务的 REST 接口。
type fakeContentService struct {
	mu            sync.Mutex
	trackedViews  int
	searches      []string
	comments      []contentapi.Comment
	createdAuth   string
	createdInputs []contentapi.ArticleInput
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (f *fakeContentService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in contentapi.LoginInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		switch in.Password {
		case "locked":
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "ACCOUNT_LOCKED", "message": "account is locked"})
		case "wrong":
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
				"user":         map[string]any{"id": "u1", "email": in.Email, "full_name": "Editor"},
				"access_token": "tok-1",
			}})
		}
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": map[string]any{"id": "u1", "full_name": "Editor"}}})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	mux.HandleFunc("GET /articles/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searches = append(f.searches, r.URL.Query().Get("q"))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"id": "a9", "title": "Elections", "content": "Local **Elections** draw record turnout."}},
			"meta": map[string]any{"total": 1, "page": 1, "limit": 5},
		})
	})
	mux.HandleFunc("GET /articles/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "city-news", "a1":
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
				"id":        "a1",
				"slug":      "city-news",
				"title":     "City news",
				"image_url": "/uploads/cover.jpg",
				"content":   "First paragraph of the story.\n\nSecond paragraph here!",
			}})
		case "busy":
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "RATE_LIMITED"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "article not found"})
		}
	})
	mux.HandleFunc("POST /articles/{id}/track-view", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.trackedViews++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /articles", func(w http.ResponseWriter, r *http.Request) {
		var in contentapi.ArticleInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.createdInputs = append(f.createdInputs, in)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": "art-1", "slug": "published-slug"}})
	})

	mux.HandleFunc("GET /articles/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		data := append([]contentapi.Comment(nil), f.comments...)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": data, "meta": map[string]any{"total": len(data), "page": 1, "limit": 10}})
	})
	mux.HandleFunc("POST /comments", func(w http.ResponseWriter, r *http.Request) {
		var in contentapi.CreateCommentInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.createdAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
			"id": "c-new", "article_id": in.ArticleID, "content": in.Content, "parent_id": in.ParentID, "user_id": "u1",
		}})
	})
	mux.HandleFunc("DELETE /comments/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "token expired"})
	})

	mux.HandleFunc("GET /categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "c1", "name": "本地"}}})
	})
	mux.HandleFunc("GET /logs/audit/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"id":       r.PathValue("id"),
			"action":   "UPDATE",
			"old_data": map[string]any{"title": "Old", "status": "DRAFT"},
			"new_data": map[string]any{"title": "New", "status": "DRAFT"},
		}})
	})

	return mux
}

type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	upstream *fakeContentService
	rooms    *comments.Registry
	cookies  map[string]*http.Cookie
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	fake := &fakeContentService{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	client := contentapi.NewClient(server.URL, 5*time.Second, zerolog.Nop())
	renderer := content.NewRenderer(content.NewAssetResolver("https://cdn.example.com"))
	rooms := comments.NewRegistry(client, comments.RegistryOptions{Logger: zerolog.Nop()})
	searches := search.NewSessions(client, time.Millisecond, zerolog.Nop())
	t.Cleanup(rooms.Close)
	t.Cleanup(searches.Close)

	api := handler.NewAPI(handler.Deps{
		DB:       gdb,
		Upstream: client,
		Reader:   service.NewReaderService(client, renderer, zerolog.Nop()),
		Drafts:   service.NewDraftService(gdb, client, renderer, zerolog.Nop()),
		Rooms:    rooms,
		Searches: searches,
		Logger:   zerolog.Nop(),
	})
	r := router.SetupRouter(api, router.Options{
		SessionSecret:  "test-secret",
		CommentLimiter: handler.NewRateLimiter(100, 10),
		Logger:         zerolog.Nop(),
	})

	return &testEnv{t: t, router: r, upstream: fake, rooms: rooms, cookies: make(map[string]*http.Cookie)}
}

func (e *testEnv) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, cookie := range e.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(e.cookies, cookie.Name)
			continue
		}
		e.cookies[cookie.Name] = cookie
	}
	return rec
}

func (e *testEnv) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	e.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			e.t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return e.do(method, path, body, "application/json")
}

func (e *testEnv) login() {
	e.t.Helper()
	rec := e.doJSON(http.MethodPost, "/api/auth/login", map[string]string{"email": "editor@example.com", "password": "secret"})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("expected login to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func hasField(body string, field string) bool {
	return strings.Contains(body, `"`+field+`"`)
}
