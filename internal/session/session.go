// internal/session/session.go
//
// Signed-cookie session store.
//
// Context
//   The identity provider lives outside this service; what Hoster needs
//   is a way to carry "user N, admin yes/no" between requests.  The
//   store signs a tiny payload with HMAC-SHA256 so the cookie cannot be
//   forged, but it holds no server-side state.  This service only reads
//   sessions (auth.Middleware) and clears them (the logout route); the
//   login flow that calls Issue is hosted by the identity provider,
//   which shares the signing secret.  All callers rely only on this
//   small API, so swapping in Redis-backed sessions later touches
//   nothing else.

package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const cookieName = "hoster_session"

// Store signs and verifies session cookies with one process-wide secret.
type Store struct {
	secret []byte
}

func New(secret string) *Store {
	return &Store{secret: []byte(secret)}
}

// Issue sets a session cookie for the given principal.
//
// No route in this service calls Issue: credential verification lives
// in the identity provider, which issues the cookie with the shared
// secret after login.  It is kept exported as the counterpart of
// Current so the cookie format has a single definition.
func (s *Store) Issue(w http.ResponseWriter, r *http.Request, userID int64, admin bool) {
	payload := fmt.Sprintf("%d|%t", userID, admin)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    payload + "." + s.sign(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil, // only send over HTTPS
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(14 * 24 * time.Hour),
	})
}

// Clear removes the session cookie.
func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Current returns the principal stored in the session, if any.
//
// ok == false when the cookie is missing, malformed, or its signature
// does not verify.
func (s *Store) Current(r *http.Request) (userID int64, admin bool, ok bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return 0, false, false
	}

	payload, sig, found := strings.Cut(c.Value, ".")
	if !found || !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return 0, false, false
	}

	idStr, adminStr, found := strings.Cut(payload, "|")
	if !found {
		return 0, false, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return id, adminStr == "true", true
}

func (s *Store) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
