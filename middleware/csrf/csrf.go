package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required")
)

// DefaultTokenLength is the nonce length in bytes
const DefaultTokenLength = 16

// DefaultTemplateHelpersKey is the locals key holding the lazy helper func.
const DefaultTemplateHelpersKey = "template_helpers"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Next skips the middleware when it returns true
	Next func(*fiber.Ctx) bool

	// SessionKey binds tokens to a visitor. Tokens are minted when a view
	// renders, so it must already see ids assigned during the request.
	// Defaults to the client IP.
	SessionKey func(*fiber.Ctx) string

	TokenLength   int
	FormFieldName string
	HeaderName    string

	SafeMethods []string

	// Expiration defines how long tokens are valid
	Expiration time.Duration

	// SecureKey signs the tokens, at least 32 bytes. A random key is
	// generated when empty, which ties tokens to one process.
	SecureKey []byte

	ErrorHandler fiber.ErrorHandler

	TemplateHelpersKey string

	now func() time.Time
}

// New creates a new CSRF middleware. Unsafe methods must carry a token
// minted through TemplateHelpers for the same session key.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(ctx *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(ctx) {
			return ctx.Next()
		}

		ctx.Locals(cfg.TemplateHelpersKey, func() map[string]any {
			return templateHelpers(ctx, cfg)
		})

		if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
			return ctx.Next()
		}

		if err := validateToken(ctx, cfg); err != nil {
			return cfg.ErrorHandler(ctx, err)
		}
		return ctx.Next()
	}
}

func generateToken(ctx *fiber.Ctx, cfg Config) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	timestamp := cfg.now().UTC().Unix()
	payload := fmt.Sprintf("%d:%s:%s", timestamp, hex.EncodeToString(nonce), encodeSession(cfg.SessionKey(ctx)))

	token := payload + ":" + hex.EncodeToString(sign(cfg.SecureKey, payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func validateToken(ctx *fiber.Ctx, cfg Config) error {
	received := extractToken(ctx, cfg)
	if received == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(received)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}
	timestampStr, nonceHex, sessionFromToken, signatureHex := parts[0], parts[1], parts[2], parts[3]

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}
	if _, err := hex.DecodeString(nonceHex); err != nil {
		return ErrTokenMismatch
	}
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrTokenMismatch
	}

	if !hmac.Equal(signature, sign(cfg.SecureKey, strings.Join(parts[:3], ":"))) {
		return ErrTokenMismatch
	}

	if subtle.ConstantTimeCompare([]byte(sessionFromToken), []byte(encodeSession(cfg.SessionKey(ctx)))) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		expiresAt := time.Unix(timestamp, 0).Add(cfg.Expiration)
		if cfg.now().UTC().After(expiresAt) {
			return ErrTokenExpired
		}
	}
	return nil
}

func encodeSession(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func sign(key []byte, payload string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func extractToken(ctx *fiber.Ctx, cfg Config) string {
	if token := ctx.FormValue(cfg.FormFieldName); token != "" {
		return token
	}
	return ctx.Get(cfg.HeaderName)
}

func templateHelpers(ctx *fiber.Ctx, cfg Config) map[string]any {
	token, err := generateToken(ctx, cfg)
	if err != nil {
		token = ""
	}
	return map[string]any{
		"csrf_token":       token,
		"csrf_field_name":  cfg.FormFieldName,
		"csrf_header_name": cfg.HeaderName,
	}
}

// TemplateHelpers returns the helpers installed by the middleware for
// this request, or nil when it did not run.
func TemplateHelpers(ctx *fiber.Ctx) map[string]any {
	return TemplateHelpersFor(ctx, DefaultTemplateHelpersKey)
}

// TemplateHelpersFor is TemplateHelpers with a custom locals key.
func TemplateHelpersFor(ctx *fiber.Ctx, key string) map[string]any {
	if fn, ok := ctx.Locals(key).(func() map[string]any); ok && fn != nil {
		return fn()
	}
	return nil
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace}
	}
	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}
	if cfg.SessionKey == nil {
		cfg.SessionKey = func(ctx *fiber.Ctx) string { return "ip_" + ctx.IP() }
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)
	return cfg
}

func defaultErrorHandler(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return fiber.NewError(fiber.StatusBadRequest, "CSRF token missing")
	case errors.Is(err, ErrTokenMismatch):
		return fiber.NewError(fiber.StatusForbidden, "CSRF token mismatch")
	case errors.Is(err, ErrTokenExpired):
		return fiber.NewError(fiber.StatusForbidden, "CSRF token expired")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "CSRF validation error")
	}
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
