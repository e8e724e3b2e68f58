package gotrue

import (
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier checks access tokens against a remote JWK set.
type TokenVerifier struct {
	jwks *keyfunc.JWKS
}

// NewTokenVerifier fetches the key set at jwksURL and keeps it refreshed.
func NewTokenVerifier(jwksURL string, refresh time.Duration) (*TokenVerifier, error) {
	if refresh <= 0 {
		refresh = time.Hour
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("gotrue: failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gotrue: failed to get JWK set: %w", err)
	}
	return &TokenVerifier{jwks: jwks}, nil
}

// Verify validates the signature and time claims of token and returns its
// expiry.
func (v *TokenVerifier) Verify(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, &claims, v.jwks.Keyfunc); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time.UTC(), nil
}

// Close stops the background refresh.
func (v *TokenVerifier) Close() {
	v.jwks.EndBackground()
}

// UnverifiedExpiry reads the exp claim without checking the signature.
// Zero means unknown.
func UnverifiedExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}
