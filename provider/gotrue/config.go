package gotrue

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the hosted backend settings.
type Config struct {
	// URL is the project base URL (e.g., "https://abc.supabase.co").
	URL string

	// AnonKey is sent as the apikey header on every request.
	AnonKey string

	// ServiceKey, when set, authorizes the profile insert instead of the
	// anon key.
	ServiceKey string

	// ProfileTable is the REST table receiving profile rows.
	// Default: "users".
	ProfileTable string

	// JWKSURL enables access token verification (optional).
	JWKSURL string

	// JWKSRefresh is the background refresh interval of the key set.
	// Default: 1 hour.
	JWKSRefresh time.Duration

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL, anonKey string) Config {
	return Config{
		URL:          baseURL,
		AnonKey:      anonKey,
		ProfileTable: "users",
		JWKSRefresh:  time.Hour,
	}
}

func (c Config) baseURL() (string, error) {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return "", fmt.Errorf("gotrue: backend url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("gotrue: invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("gotrue: invalid URL: %s", raw)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (c Config) restKey() string {
	if c.ServiceKey != "" {
		return c.ServiceKey
	}
	return c.AnonKey
}
