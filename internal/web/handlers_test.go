// internal/web/handlers_test.go
//
// Route-level tests with httptest, sqlmock for the registry, and the
// filesystem storage backend.
//
// Run: go test ./internal/web -v

package web

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/hoster/internal/auth"
	"github.com/yanizio/hoster/internal/config"
	"github.com/yanizio/hoster/internal/ingest"
	"github.com/yanizio/hoster/internal/session"
	"github.com/yanizio/hoster/internal/site"
	"github.com/yanizio/hoster/internal/storage"
)

var recordCols = []string{
	"id", "name", "owner_id", "content_url", "status", "error_detail",
	"is_published", "created_at", "updated_at",
}

// recordingRegistry lets upload tests wait for the async pipeline.
type recordingRegistry struct {
	mu   sync.Mutex
	done map[string]string // id → terminal status
}

func (r *recordingRegistry) MarkCompleted(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[id] = "completed"
	return nil
}

func (r *recordingRegistry) MarkFailed(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[id] = "failed"
	return nil
}

func (r *recordingRegistry) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done[id]
}

type testEnv struct {
	h     *Handler
	mock  sqlmock.Sqlmock
	store *storage.Local
	reg   *recordingRegistry
	pool  *ingest.Pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := site.NewRepository(sqlx.NewDb(db, "sqlmock"))

	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.HTTP.MaxBodyBytes = 50 << 20
	cfg.Ingest.MaxArchiveBytes = 100 << 20
	cfg.Ingest.MaxPasteBytes = 1 << 20
	cfg.Storage.OpTimeout = 5 * time.Second
	cfg.Paths.Uploads = t.TempDir()

	log := zap.NewNop().Sugar()
	reg := &recordingRegistry{done: make(map[string]string)}
	pool := ingest.NewPool(1, 4, log)
	pipe := ingest.NewPipeline(store, reg, log, ingest.Options{
		StagingRoot:     cfg.Paths.Uploads,
		MaxArchiveBytes: cfg.Ingest.MaxArchiveBytes,
		OpTimeout:       cfg.Storage.OpTimeout,
	})

	return &testEnv{
		h:     NewHandler(repo, store, pool, pipe, cfg, log, session.New("test-secret")),
		mock:  mock,
		store: store,
		reg:   reg,
		pool:  pool,
	}
}

// asUser attaches a principal to the request.
func asUser(r *http.Request, id int64, admin bool) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{ID: id, Admin: admin}))
}

// zipBody builds a multipart body holding one uploaded file.
func zipBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func expectByID(mock sqlmock.Sqlmock, id string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE id = ?`)).
		WithArgs(id).
		WillReturnRows(rows)
}

func siteRow(id, name string, owner int64, status string, published bool) *sqlmock.Rows {
	now := time.Now().UTC()
	url := ""
	if status == "completed" {
		url = "/site/" + id + "/index.html"
	}
	return sqlmock.NewRows(recordCols).
		AddRow(id, name, owner, url, status, nil, published, now, now)
}

/*──────────────────────────── tests ────────────────────────────────────────*/

func TestUploadRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	body, ctype := zipBody(t, "file", "demo.zip", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestUploadRejectsNonZip(t *testing.T) {
	env := newTestEnv(t)

	body, ctype := zipBody(t, "file", "notes.txt", []byte("hello"))
	req := asUser(httptest.NewRequest(http.MethodPost, "/upload", body), 7, false)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	env := newTestEnv(t)

	body, ctype := zipBody(t, "file", "demo.zip", nil)
	req := asUser(httptest.NewRequest(http.MethodPost, "/upload", body), 7, false)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body)
	}
}

func TestUploadRejectsOversizeDeclaredBody(t *testing.T) {
	env := newTestEnv(t)

	// The declared length alone must trigger the 413; the handler may
	// not start parsing (and spooling) the multipart body first.
	body, ctype := zipBody(t, "file", "demo.zip", []byte("PK"))
	req := asUser(httptest.NewRequest(http.MethodPost, "/upload", body), 7, false)
	req.Header.Set("Content-Type", ctype)
	req.ContentLength = env.h.cfg.HTTP.MaxBodyBytes + 1
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rr.Code, rr.Body)
	}
	entries, err := os.ReadDir(env.h.cfg.Paths.Uploads)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("uploads dir not empty after rejected declaration: %v", entries)
	}
}

func TestUploadAccepted(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM site WHERE name = ?`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	env.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO site`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// A zip of one index.html, crafted inline.
	var zb bytes.Buffer
	writeTinyZip(t, &zb)

	body, ctype := zipBody(t, "file", "portfolio.zip", zb.Bytes())
	req := asUser(httptest.NewRequest(http.MethodPost, "/upload", body), 7, false)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"status":"pending"`) {
		t.Errorf("202 body missing pending status: %s", rr.Body)
	}

	// Drain the pool and confirm the unit reached a terminal state.
	env.pool.Shutdown()
	if env.reg.status(firstKey(env.reg)) != "completed" {
		t.Fatalf("unit did not complete: %+v", env.reg.done)
	}
}

func TestPasteRejectsOversize(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"html_code": {strings.Repeat("x", (1<<20)+1)}}
	req := asUser(httptest.NewRequest(http.MethodPost, "/paste_site",
		strings.NewReader(form.Encode())), 7, false)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rr.Code, rr.Body)
	}
}

func TestPasteRejectsOversizeDeclaredBody(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(httptest.NewRequest(http.MethodPost, "/paste_site",
		strings.NewReader("html_code=hi")), 7, false)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.ContentLength = env.h.cfg.Ingest.MaxPasteBytes + 64<<10 + 1
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rr.Code, rr.Body)
	}
}

func TestPasteRejectsEmpty(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(httptest.NewRequest(http.MethodPost, "/paste_site",
		strings.NewReader("html_code=")), 7, false)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body)
	}
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(httptest.NewRequest(http.MethodPost, "/logout", nil), 7, false)
	rr := httptest.NewRecorder()

	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body)
	}
	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == "hoster_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("response does not expire the session cookie")
	}
}

func TestServeSitePublished(t *testing.T) {
	env := newTestEnv(t)

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", true))
	putObject(t, env.store, "abc/index.html", "<html>live</html>")

	req := httptest.NewRequest(http.MethodGet, "/site/abc", nil)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if rr.Body.String() != "<html>live</html>" {
		t.Errorf("body = %q", rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}

func TestServeSiteAsset(t *testing.T) {
	env := newTestEnv(t)

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", true))
	putObject(t, env.store, "abc/css/style.css", "body{}")

	req := httptest.NewRequest(http.MethodGet, "/site/abc/css/style.css", nil)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/css" {
		t.Errorf("content type = %q", ct)
	}
}

func TestServeSitePendingIs404(t *testing.T) {
	env := newTestEnv(t)

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "pending", true))

	req := httptest.NewRequest(http.MethodGet, "/site/abc", nil)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestServeSiteUnpublished(t *testing.T) {
	env := newTestEnv(t)
	putObject(t, env.store, "abc/index.html", "<html>private</html>")

	// Anonymous: forbidden.
	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", false))
	req := httptest.NewRequest(http.MethodGet, "/site/abc", nil)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("anonymous: status = %d, want 403", rr.Code)
	}

	// Owner: allowed.
	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", false))
	req = asUser(httptest.NewRequest(http.MethodGet, "/site/abc", nil), 7, false)
	rr = httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner: status = %d: %s", rr.Code, rr.Body)
	}

	// Admin: allowed.
	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", false))
	req = asUser(httptest.NewRequest(http.MethodGet, "/site/abc", nil), 99, true)
	rr = httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin: status = %d", rr.Code)
	}
}

func TestServeSiteMissingObject(t *testing.T) {
	env := newTestEnv(t)

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", true))

	req := httptest.NewRequest(http.MethodGet, "/site/abc/missing.png", nil)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestDeleteSiteForbiddenForStranger(t *testing.T) {
	env := newTestEnv(t)

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", true))

	req := asUser(httptest.NewRequest(http.MethodPost, "/delete_site/abc", nil), 8, false)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestDeleteSite(t *testing.T) {
	env := newTestEnv(t)
	putObject(t, env.store, "abc/index.html", "x")

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", true))
	env.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM site WHERE id = ?`)).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := asUser(httptest.NewRequest(http.MethodPost, "/delete_site/abc", nil), 7, false)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}

	// Objects purged alongside the row.
	keys, err := env.store.List(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("objects left behind: %v", keys)
	}
}

func TestToggleVisibility(t *testing.T) {
	env := newTestEnv(t)

	expectByID(env.mock, "abc", siteRow("abc", "demo", 7, "completed", true))
	env.mock.ExpectExec(regexp.QuoteMeta(`UPDATE site SET is_published = ?, updated_at = ? WHERE id = ?`)).
		WithArgs(false, sqlmock.AnyArg(), "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := asUser(httptest.NewRequest(http.MethodPost, "/toggle_site_visibility/abc", nil), 7, false)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"is_published":false`) {
		t.Errorf("body missing new visibility: %s", rr.Body)
	}
}

func TestSiteStatusFailed(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now().UTC()
	expectByID(env.mock, "abc", sqlmock.NewRows(recordCols).
		AddRow("abc", "demo", int64(7), "", "failed", "no index.html", true, now, now))

	req := httptest.NewRequest(http.MethodGet, "/api/site/abc/status", nil)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "no index.html") {
		t.Errorf("body missing error detail: %s", rr.Body)
	}
}

func TestListSitesScopedToOwner(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now().UTC()
	env.mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE owner_id = ?`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("abc", "mine", int64(7), "", "pending", nil, true, now, now))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/sites", nil), 7, false)
	rr := httptest.NewRecorder()
	env.h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"mine"`) {
		t.Errorf("body missing owned site: %s", rr.Body)
	}
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

func putObject(t *testing.T, store *storage.Local, key, content string) {
	t.Helper()
	src := t.TempDir() + "/src"
	if err := writeFile(src, content); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), src, key, ""); err != nil {
		t.Fatal(err)
	}
}

func firstKey(r *recordingRegistry) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.done {
		return id
	}
	return ""
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// writeTinyZip emits a one-entry archive holding index.html.
func writeTinyZip(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	zw := zip.NewWriter(buf)
	w, err := zw.Create("index.html")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("<html>uploaded</html>")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}
