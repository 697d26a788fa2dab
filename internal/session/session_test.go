// internal/session/session_test.go
//
// Run: go test ./internal/session -v

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func cookieFrom(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	res := rr.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestIssueAndCurrent(t *testing.T) {
	s := New("test-secret")

	rr := httptest.NewRecorder()
	s.Issue(rr, httptest.NewRequest(http.MethodPost, "/login", nil), 42, true)
	c := cookieFrom(t, rr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	id, admin, ok := s.Current(req)
	if !ok || id != 42 || !admin {
		t.Fatalf("Current = (%d, %t, %t), want (42, true, true)", id, admin, ok)
	}
}

func TestCurrentRejectsTamperedPayload(t *testing.T) {
	s := New("test-secret")

	rr := httptest.NewRecorder()
	s.Issue(rr, httptest.NewRequest(http.MethodPost, "/login", nil), 42, false)
	c := cookieFrom(t, rr)

	// Flip the user id; the signature no longer matches.
	c.Value = strings.Replace(c.Value, "42|", "43|", 1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	if _, _, ok := s.Current(req); ok {
		t.Fatal("tampered cookie accepted")
	}
}

func TestCurrentRejectsForeignSecret(t *testing.T) {
	issuer := New("secret-a")
	verifier := New("secret-b")

	rr := httptest.NewRecorder()
	issuer.Issue(rr, httptest.NewRequest(http.MethodPost, "/login", nil), 42, false)
	c := cookieFrom(t, rr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	if _, _, ok := verifier.Current(req); ok {
		t.Fatal("cookie signed with another secret accepted")
	}
}

func TestCurrentMissingCookie(t *testing.T) {
	s := New("test-secret")
	if _, _, ok := s.Current(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("missing cookie reported a principal")
	}
}
