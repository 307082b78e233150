package auth

import "net/url"

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Secure indicates whether the cookie should only be sent over HTTPS.
	Secure bool
	// Domain is the cookie domain scope. Empty isolates the cookie to the
	// serving hostname.
	Domain string
}

// DeriveCookieSettings determines cookie security settings from the base
// URL. Plain-HTTP development (http://localhost) keeps Secure off; any
// HTTPS deployment turns it on. The configCookieDomain parameter allows an
// explicit domain override for deployments behind a shared parent domain.
func DeriveCookieSettings(baseURL string, configCookieDomain string) CookieSettings {
	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		// Safe defaults for invalid URLs
		return CookieSettings{Secure: true, Domain: configCookieDomain}
	}

	return CookieSettings{
		Secure: parsedURL.Scheme != "http",
		Domain: configCookieDomain,
	}
}
