package gotrue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	authcard "github.com/goliatone/go-authcard"
)

// Client implements authcard.Backend over the GoTrue and PostgREST HTTP
// APIs.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	verifier   *TokenVerifier
	now        func() time.Time
}

var _ authcard.Backend = (*Client)(nil)

// New creates a client. A JWKS URL in cfg fetches the key set eagerly.
func New(cfg Config) (*Client, error) {
	base, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, fmt.Errorf("gotrue: backend anon key is required")
	}
	if cfg.ProfileTable == "" {
		cfg.ProfileTable = "users"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		config:     cfg,
		baseURL:    base,
		httpClient: client,
		now:        time.Now,
	}

	if cfg.JWKSURL != "" {
		c.verifier, err = NewTokenVerifier(cfg.JWKSURL, cfg.JWKSRefresh)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Close stops the key set refresh, if any.
func (c *Client) Close() {
	if c.verifier != nil {
		c.verifier.Close()
	}
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`

	// sign up without auto confirm answers with the bare user
	ID    string `json:"id"`
	Email string `json:"email"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SignIn implements authcard.Authenticator.
func (c *Client) SignIn(ctx context.Context, email, password string) (*authcard.AuthResult, error) {
	var resp sessionResponse
	endpoint := c.baseURL + "/auth/v1/token?grant_type=password"
	if err := c.post(ctx, endpoint, c.config.AnonKey, passwordGrant{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.result(resp)
}

// SignUp implements authcard.Authenticator. The display name is stored as
// full_name in the user metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, opts authcard.SignUpOptions) (*authcard.AuthResult, error) {
	req := signUpRequest{Email: email, Password: password}
	if opts.DisplayName != "" {
		req.Data = map[string]any{"full_name": opts.DisplayName}
	}

	var resp sessionResponse
	if err := c.post(ctx, c.baseURL+"/auth/v1/signup", c.config.AnonKey, req, &resp); err != nil {
		return nil, err
	}
	return c.result(resp)
}

type profileRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertProfile implements authcard.ProfileStore.
func (c *Client) InsertProfile(ctx context.Context, record authcard.ProfileRecord) error {
	row := profileRow{
		ID:        record.ID,
		Name:      record.Name,
		Email:     record.Email,
		CreatedAt: record.CreatedAt,
	}
	endpoint := c.baseURL + "/rest/v1/" + c.config.ProfileTable
	return c.post(ctx, endpoint, c.config.restKey(), []profileRow{row}, nil, withHeader("Prefer", "return=minimal"))
}

func (c *Client) result(resp sessionResponse) (*authcard.AuthResult, error) {
	res := &authcard.AuthResult{}

	switch {
	case resp.User != nil:
		res.User = &authcard.User{ID: resp.User.ID, Email: resp.User.Email}
	case resp.ID != "":
		res.User = &authcard.User{ID: resp.ID, Email: resp.Email}
	}

	if resp.AccessToken == "" {
		return res, nil
	}

	session := &authcard.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		session.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}

	if c.verifier != nil {
		exp, err := c.verifier.Verify(resp.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("gotrue: access token rejected: %w", err)
		}
		if session.ExpiresAt.IsZero() {
			session.ExpiresAt = exp
		}
	} else if session.ExpiresAt.IsZero() {
		session.ExpiresAt = UnverifiedExpiry(resp.AccessToken)
	}

	res.Session = session
	return res, nil
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func (c *Client) post(ctx context.Context, endpoint, key string, payload, out any, opts ...requestOption) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+key)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gotrue: decode response: %w", err)
	}
	return nil
}

// parseError maps an error body onto AuthError. The human readable
// message is taken from msg, error_description, message and error, in
// that order.
func parseError(status int, raw []byte) error {
	authErr := &authcard.AuthError{Status: status}

	var body errorResponse
	if err := sonic.Unmarshal(raw, &body); err != nil {
		authErr.Message = strings.TrimSpace(string(raw))
		return authErr
	}

	for _, msg := range []string{body.Msg, body.ErrorDescription, body.Message, body.Error} {
		if strings.TrimSpace(msg) != "" {
			authErr.Message = msg
			break
		}
	}

	switch {
	case body.ErrorCode != "":
		authErr.Code = body.ErrorCode
	case body.Error != "" && body.Error != authErr.Message:
		authErr.Code = body.Error
	}
	return authErr
}
