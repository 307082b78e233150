package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// Store is the global session store for the SPA. The session cookie carries
// the user's access token so browser requests authenticate without a
// client-side Authorization header.
var Store *sessions.CookieStore

// SessionName is the name of the SPA session cookie.
const SessionName = "plume_session"

// sessionKeyToken is the session value holding the access token.
const sessionKeyToken = "token"

// InitSessionStore initializes the cookie-based session store.
//
// The secret parameter signs session cookies. It can be any passphrase -
// it will be SHA-256 hashed to derive a 32-byte key. The secret must be
// consistent across server restarts and multiple servers in a
// load-balanced deployment.
//
// maxAge is the cookie lifetime in seconds and should match the access
// token TTL, since the cookie only carries the token.
//
// Security settings:
// - HttpOnly: true (inaccessible to JavaScript)
// - Secure: from cookie settings (HTTPS only outside localhost)
// - SameSite: Strict (prevents CSRF)
func InitSessionStore(secret string, settings CookieSettings, maxAge int) {
	// Hash the secret to get a consistent 32-byte key
	key := sha256.Sum256([]byte(secret))

	Store = sessions.NewCookieStore(key[:])
	Store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetSessionToken stores the access token in the SPA session cookie.
func SetSessionToken(r *http.Request, w http.ResponseWriter, token string) error {
	session, err := Store.Get(r, SessionName)
	if err != nil {
		// A stale or tampered cookie decodes to an error plus a fresh
		// session; write into the fresh one.
		session, _ = Store.New(r, SessionName)
	}
	session.Values[sessionKeyToken] = token
	return session.Save(r, w)
}

// SessionToken reads the access token from the SPA session cookie.
// Returns empty string when no valid session is present.
func SessionToken(r *http.Request) string {
	if Store == nil {
		return ""
	}
	session, err := Store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values[sessionKeyToken].(string)
	return token
}

// ClearSession expires the SPA session cookie.
func ClearSession(r *http.Request, w http.ResponseWriter) error {
	session, err := Store.Get(r, SessionName)
	if err != nil {
		session, _ = Store.New(r, SessionName)
	}
	delete(session.Values, sessionKeyToken)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
