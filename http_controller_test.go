package authcard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cardClient struct {
	t       *testing.T
	app     *fiber.App
	page    string
	session string
}

func newCardClient(t *testing.T, h *testHarness, opts ...AppOption) (*cardClient, *Pages) {
	t.Helper()
	pages := NewPages(h.deps())
	controller := NewCardController(pages,
		WithControllerLogger(nopLogger{}),
		WithSecureCookies(false),
	)
	return &cardClient{t: t, app: NewApp(controller, opts...)}, pages
}

func (c *cardClient) do(method, target string, form url.Values) (*http.Response, string) {
	c.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.page != "" {
		req.AddCookie(&http.Cookie{Name: "authcard_page", Value: c.page})
	}

	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case "authcard_page":
			c.page = cookie.Value
		case "authcard_session":
			c.session = cookie.Value
		}
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(raw)
}

func TestCardShow_CreatesPage(t *testing.T) {
	h := newHarness()
	client, pages := newCardClient(t, h)

	resp, body := client.do(http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, client.page)
	assert.Equal(t, 1, pages.Len())

	assert.Contains(t, body, "NovaSphere")
	assert.Contains(t, body, "Premium cloud workspace platform")
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, `data-mode="sign-in"`)
	assert.NotContains(t, body, "http-equiv=\"refresh\"")

	first := client.page
	client.do(http.MethodGet, "/", nil)
	assert.Equal(t, first, client.page, "the cookie keeps the page")
	assert.Equal(t, 1, pages.Len())
}

func TestCardShow_CookieFlags(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)

	resp, _ := client.do(http.MethodGet, "/", nil)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "authcard_page" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestLoginPost_RendersValidationFeedback(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, body := client.do(http.MethodPost, "/login", url.Values{"email": {"ann"}, "password": {"secret1"}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Please enter a valid email address.")
	assert.Contains(t, body, `role="alert"`)
	assert.Contains(t, body, `value="ann"`)
	assert.Empty(t, client.session)

	h.backend.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginPost_InvalidCredentialsShake(t *testing.T) {
	h := newHarness()
	h.backend.On("SignIn", mock.Anything, "ann@example.com", "wrong-1").
		Return(nil, &AuthError{Status: 400, Message: "Invalid login credentials"})
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	_, body := client.do(http.MethodPost, "/login", url.Values{"email": {"ann@example.com"}, "password": {"wrong-1"}})
	assert.Contains(t, body, "Invalid email or password. Please try again.")
	assert.Contains(t, body, "shake-1")
	assert.NotContains(t, body, "wrong-1")
}

func TestLoginPost_SuccessThroughRedirect(t *testing.T) {
	h := newHarness()
	h.backend.On("SignIn", mock.Anything, "ann@example.com", "secret1").Return(signedIn("ann@example.com"), nil)
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, body := client.do(http.MethodPost, "/login", url.Values{"email": {"ann@example.com"}, "password": {"secret1"}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome back! Signed in as ann@example.com")
	assert.Contains(t, body, `content="1;url=/"`)
	assert.Equal(t, "token-1", client.session)

	// handoff
	require.Equal(t, 1, h.scheduler.Fire())
	resp, body = client.do(http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "exit-overlay active")
	assert.Contains(t, body, `content="2;url=/app"`)

	// redirect
	require.Equal(t, 1, h.scheduler.Fire())
	resp, _ = client.do(http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/app", resp.Header.Get("Location"))
	assert.Len(t, h.navigator.Calls(), 1)
}

func TestModePost_SwitchesAndRedirects(t *testing.T) {
	h := newHarness()
	client, pages := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, _ := client.do(http.MethodPost, "/mode", url.Values{"mode": {"register"}, "trigger": {"tab"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	page, err := pages.Get(context.Background(), client.page)
	require.NoError(t, err)
	assert.Equal(t, ModeRegister, page.Card().Mode())

	_, body := client.do(http.MethodGet, "/", nil)
	assert.Contains(t, body, `action="/register"`)
	assert.Contains(t, body, "Full Name")
}

func TestModePost_RejectsUnknownMode(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, _ := client.do(http.MethodPost, "/mode", url.Values{"mode": {"admin"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = client.do(http.MethodPost, "/mode", url.Values{"mode": {"register"}, "trigger": {"keyboard"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRegisterPost_ShowsSuccessPanel(t *testing.T) {
	h := newHarness()
	h.backend.On("SignUp", mock.Anything, "ann@example.com", "Password1", SignUpOptions{DisplayName: "Ann Lee"}).
		Return(&AuthResult{User: &User{ID: "user-1", Email: "ann@example.com"}}, nil)
	h.backend.On("InsertProfile", mock.Anything, mock.Anything).Return(nil)

	client, pages := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)
	client.do(http.MethodPost, "/mode", url.Values{"mode": {"register"}})

	resp, body := client.do(http.MethodPost, "/register", url.Values{
		"name":     {"Ann Lee"},
		"email":    {"ann@example.com"},
		"password": {"Password1"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome aboard!")
	assert.Contains(t, body, "Ann Lee")
	assert.Contains(t, body, `action="/success/sign-in"`)

	resp, _ = client.do(http.MethodPost, "/mode", url.Values{"mode": {"sign-in"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	_, body = client.do(http.MethodGet, "/", nil)
	assert.Contains(t, body, "Welcome aboard!", "a crafted mode switch keeps the panel")

	resp, _ = client.do(http.MethodPost, "/success/sign-in", nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	page, err := pages.Get(context.Background(), client.page)
	require.NoError(t, err)
	assert.Equal(t, ModeSignIn, page.Card().Mode())
}

func TestRegisterPost_OutsideRegisterMode(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, body := client.do(http.MethodPost, "/register", url.Values{"name": {"Ann"}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/login"`)
	h.backend.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVisibilityPost(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, _ := client.do(http.MethodPost, "/fields/visibility", url.Values{
		"email":    {"ann@example.com"},
		"password": {"secret1"},
		"field":    {"password"},
	})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	_, body := client.do(http.MethodGet, "/", nil)
	assert.Contains(t, body, `aria-label="Hide password"`)
	assert.Contains(t, body, `type="text"`)
	assert.Contains(t, body, `value="ann@example.com"`, "typed email survives the toggle")
	assert.NotContains(t, body, "secret1")

	client.do(http.MethodPost, "/mode", url.Values{"mode": {"register"}})
	client.do(http.MethodPost, "/fields/visibility", url.Values{
		"name":  {"Ann Lee"},
		"email": {"ann@example.com"},
		"field": {"password"},
	})
	_, body = client.do(http.MethodGet, "/", nil)
	assert.Contains(t, body, `value="Ann Lee"`)
	assert.Contains(t, body, `value="ann@example.com"`)

	resp, _ = client.do(http.MethodPost, "/fields/visibility", url.Values{"field": {"email"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCardShow_Reload(t *testing.T) {
	h := newHarness()
	client, pages := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)
	client.do(http.MethodPost, "/mode", url.Values{"mode": {"register"}})
	old := client.page

	_, body := client.do(http.MethodGet, "/?reload=1", nil)
	assert.NotEqual(t, old, client.page)
	assert.Contains(t, body, `data-mode="sign-in"`)
	assert.Equal(t, 1, pages.Len())

	_, err := pages.Get(context.Background(), old)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestHandleError_RendersFallback(t *testing.T) {
	h := newHarness()
	client, pages := newCardClient(t, h, func(app *fiber.App) {
		app.Get("/boom", func(*fiber.Ctx) error {
			panic("backend url is required")
		})
	})
	client.do(http.MethodGet, "/", nil)

	resp, body := client.do(http.MethodGet, "/boom", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Something went wrong")
	assert.Contains(t, body, "The authentication backend is not configured.")
	assert.Contains(t, body, `href="/?reload=1"`)

	page, err := pages.Get(context.Background(), client.page)
	require.NoError(t, err)
	assert.True(t, page.Failed())

	// the failed page keeps rendering the fallback until reloaded
	resp, _ = client.do(http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	resp, body = client.do(http.MethodGet, "/?reload=1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/login"`)
}

func TestHandleError_PanicInsidePageLoop(t *testing.T) {
	h := newHarness()
	deps := h.deps()
	deps.Activity = ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		if event.EventType == ActivityEventModeChanged {
			panic("activity sink exploded")
		}
		return nil
	})
	pages := NewPages(deps)
	controller := NewCardController(pages,
		WithControllerLogger(nopLogger{}),
		WithSecureCookies(false),
	)
	client := &cardClient{t: t, app: NewApp(controller)}
	client.do(http.MethodGet, "/", nil)

	resp, body := client.do(http.MethodPost, "/mode", url.Values{"mode": {"register"}})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Something went wrong")
	assert.Contains(t, body, `href="/?reload=1"`)

	page, err := pages.Get(context.Background(), client.page)
	require.NoError(t, err)
	assert.True(t, page.Failed())

	resp, body = client.do(http.MethodGet, "/?reload=1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/login"`)
}

func TestHandleError_ClientErrorsPassThrough(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)

	resp, body := client.do(http.MethodGet, "/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, body, "Something went wrong")
}

func TestHealthz(t *testing.T) {
	h := newHarness()
	client, _ := newCardClient(t, h)
	client.do(http.MethodGet, "/", nil)

	resp, body := client.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","pages":1}`, body)
}
