package authcard

import (
	"errors"
	"fmt"
	"maps"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authcard/middleware/csrf"
	"github.com/goliatone/go-print"
)

const pageLocalsKey = "authcard_page_id"

// RegisterCardRoutes mounts the card routes on app.
func RegisterCardRoutes(app fiber.Router, controller *CardController) {
	app.Get(controller.Routes.Card, controller.CardShow).Name("card.get")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	app.Post(controller.Routes.Register, controller.RegisterPost).Name("register.post")
	app.Post(controller.Routes.Mode, controller.ModePost).Name("mode.post")
	app.Post(controller.Routes.SignInNow, controller.SignInNowPost).Name("sign-in-now.post")
	app.Post(controller.Routes.Visibility, controller.VisibilityPost).Name("visibility.post")
	app.Get(controller.Routes.Health, controller.Healthz).Name("healthz.get")
}

type CardControllerRoutes struct {
	Card       string
	Login      string
	Register   string
	Mode       string
	SignInNow  string
	Visibility string
	Health     string
}

type CardControllerViews struct {
	Card     string
	Exit     string
	Fallback string
}

// Brand is the header shown on the card.
type Brand struct {
	Name    string
	Tagline string
}

type CardController struct {
	Debug         bool
	Logger        Logger
	Pages         *Pages
	Routes        *CardControllerRoutes
	Views         *CardControllerViews
	Brand         Brand
	PageCookie    string
	SessionCookie string
	SecureCookies bool
}

type CardControllerOption func(*CardController) *CardController

func WithControllerLogger(logger Logger) CardControllerOption {
	return func(c *CardController) *CardController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithBrand(brand Brand) CardControllerOption {
	return func(c *CardController) *CardController {
		c.Brand = brand
		return c
	}
}

func WithSecureCookies(secure bool) CardControllerOption {
	return func(c *CardController) *CardController {
		c.SecureCookies = secure
		return c
	}
}

func WithDebug(debug bool) CardControllerOption {
	return func(c *CardController) *CardController {
		c.Debug = debug
		return c
	}
}

func NewCardController(pages *Pages, opts ...CardControllerOption) *CardController {
	c := &CardController{
		Logger: defLogger{},
		Pages:  pages,
		Brand: Brand{
			Name:    "NovaSphere",
			Tagline: "Premium cloud workspace platform",
		},
		PageCookie:    "authcard_page",
		SessionCookie: "authcard_session",
		SecureCookies: true,
		Routes: &CardControllerRoutes{
			Card:       "/",
			Login:      "/login",
			Register:   "/register",
			Mode:       "/mode",
			SignInNow:  "/success/sign-in",
			Visibility: "/fields/visibility",
			Health:     "/healthz",
		},
		Views: &CardControllerViews{
			Card:     "card",
			Exit:     "exit",
			Fallback: "errors/fallback",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Pages == nil {
		panic("Missing Pages registry in card controller...")
	}

	return c
}

func (a *CardController) CardShow(ctx *fiber.Ctx) error {
	if ctx.Query("reload") == "1" {
		a.Pages.Discard(ctx.UserContext(), ctx.Cookies(a.PageCookie))
		page, err := a.Pages.Create(ctx.UserContext())
		if err != nil {
			return err
		}
		a.setPageCookie(ctx, page.ID())
		ctx.Locals(pageLocalsKey, page.ID())
		return a.render(ctx, page)
	}

	page, err := a.page(ctx)
	if err != nil {
		return err
	}
	return a.render(ctx, page)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *CardController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to parse form")
	}

	page, err := a.page(ctx)
	if err != nil {
		return err
	}

	session := page.SubmitLogin(ctx.UserContext(), Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if session != nil {
		a.setSessionCookie(ctx, session)
	}

	return a.render(ctx, page)
}

// RegisterRequest payload
type RegisterRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *CardController) RegisterPost(ctx *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to parse form")
	}

	page, err := a.page(ctx)
	if err != nil {
		return err
	}

	user, err := page.SubmitRegistration(ctx.UserContext(), RegistrationProfile{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if errors.Is(err, ErrInvalidTransition) {
		a.Logger.Info("registration posted outside register mode", "page", page.ID())
	}

	if a.Debug && user != nil {
		fmt.Println("======= AUTHCARD REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(map[string]any{"page": page.ID(), "mode": page.Card().Mode()}))
		fmt.Println("================================")
	}

	return a.render(ctx, page)
}

// ModeRequest payload
type ModeRequest struct {
	Mode    string `form:"mode" json:"mode"`
	Trigger string `form:"trigger" json:"trigger"`
}

// Validate will run validation rules
func (r ModeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Mode,
			validation.Required,
			validation.In(string(ModeSignIn), string(ModeRegister), "login"),
		),
		validation.Field(
			&r.Trigger,
			validation.In(string(TriggerTab), string(TriggerLink)),
		),
	)
}

func (a *CardController) ModePost(ctx *fiber.Ctx) error {
	payload := new(ModeRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to parse form")
	}
	if err := payload.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	page, err := a.page(ctx)
	if err != nil {
		return err
	}

	mode, _ := ParseViewMode(payload.Mode)
	trigger := TriggerTab
	if payload.Trigger != "" {
		trigger = TransitionTrigger(payload.Trigger)
	}

	if err := page.Card().SwitchTo(mode, trigger); err != nil {
		a.Logger.Info("mode switch rejected", "page", page.ID(), "error", err)
	}

	return ctx.Redirect(a.Routes.Card, fiber.StatusSeeOther)
}

func (a *CardController) SignInNowPost(ctx *fiber.Ctx) error {
	page, err := a.page(ctx)
	if err != nil {
		return err
	}

	if err := page.Card().SignInNow(); err != nil {
		a.Logger.Info("sign in now rejected", "page", page.ID(), "error", err)
	}

	return ctx.Redirect(a.Routes.Card, fiber.StatusSeeOther)
}

// VisibilityRequest is posted by the toggle button, which submits the
// whole form.
type VisibilityRequest struct {
	Field string `form:"field" json:"field"`
	Name  string `form:"name" json:"name"`
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r VisibilityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Field, validation.Required, validation.In("password")),
	)
}

func (a *CardController) VisibilityPost(ctx *fiber.Ctx) error {
	payload := new(VisibilityRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to parse form")
	}
	if err := payload.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	page, err := a.page(ctx)
	if err != nil {
		return err
	}
	page.EditFields(FieldValues{Name: payload.Name, Email: payload.Email})
	page.ToggleVisibility()

	return ctx.Redirect(a.Routes.Card, fiber.StatusSeeOther)
}

func (a *CardController) Healthz(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status": "ok",
		"pages":  a.Pages.Len(),
	})
}

// HandleError is the fallback boundary. Client errors are answered as is,
// anything else marks the visitor's page failed and renders the fallback.
func (a *CardController) HandleError(ctx *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) && ferr.Code < fiber.StatusInternalServerError {
		return ctx.Status(ferr.Code).SendString(ferr.Message)
	}

	a.Logger.Error("render failure", "path", ctx.OriginalURL(), "error", err)

	if id := ctx.Cookies(a.PageCookie); id != "" {
		if page, perr := a.Pages.Get(ctx.UserContext(), id); perr == nil {
			page.Fail(err.Error())
		}
	}

	if rerr := a.renderFallback(ctx, err.Error()); rerr != nil {
		a.Logger.Error("fallback render failure", "error", rerr)
		return ctx.Status(fiber.StatusInternalServerError).
			SendString("Something went wrong. " + FallbackMessage(err.Error()))
	}
	return nil
}

func (a *CardController) page(ctx *fiber.Ctx) (*Page, error) {
	page, created, err := a.Pages.GetOrCreate(ctx.UserContext(), ctx.Cookies(a.PageCookie))
	if err != nil {
		return nil, err
	}
	if created {
		a.setPageCookie(ctx, page.ID())
	}
	ctx.Locals(pageLocalsKey, page.ID())
	return page, nil
}

// PageID is the page the request works on: the one resolved during the
// request, else the cookie.
func (a *CardController) PageID(ctx *fiber.Ctx) string {
	if id, ok := ctx.Locals(pageLocalsKey).(string); ok && id != "" {
		return id
	}
	return ctx.Cookies(a.PageCookie)
}

func (a *CardController) render(ctx *fiber.Ctx, page *Page) error {
	view := page.View()

	switch {
	case view.Failed:
		return a.renderFallback(ctx, view.Failure)
	case view.Navigated:
		return ctx.Redirect(view.Destination, fiber.StatusSeeOther)
	case view.Exiting:
		return ctx.Render(a.Views.Exit, a.viewContext(ctx, view))
	default:
		return ctx.Render(a.Views.Card, a.viewContext(ctx, view))
	}
}

func (a *CardController) renderFallback(ctx *fiber.Ctx, reason string) error {
	data := TemplateHelpersWith(a.Brand, fiber.Map{
		"message": FallbackMessage(reason),
		"reload":  a.Routes.Card + "?reload=1",
	})
	return ctx.Status(fiber.StatusInternalServerError).Render(a.Views.Fallback, data)
}

func (a *CardController) viewContext(ctx *fiber.Ctx, view PageView) fiber.Map {
	data := TemplateHelpersWith(a.Brand, fiber.Map{
		"page":   view,
		"routes": a.Routes,
	})
	if helpers := csrf.TemplateHelpers(ctx); helpers != nil {
		maps.Copy(data, helpers)
	}
	return data
}

func (a *CardController) setPageCookie(ctx *fiber.Ctx, id string) {
	ctx.Cookie(&fiber.Cookie{
		Name:     a.PageCookie,
		Value:    id,
		Expires:  time.Now().Add(a.Pages.TTL()),
		HTTPOnly: true,
		Secure:   a.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *CardController) setSessionCookie(ctx *fiber.Ctx, session *Session) {
	if session.AccessToken == "" {
		return
	}
	cookie := &fiber.Cookie{
		Name:     a.SessionCookie,
		Value:    session.AccessToken,
		HTTPOnly: true,
		Secure:   a.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if !session.ExpiresAt.IsZero() {
		cookie.Expires = session.ExpiresAt
	}
	ctx.Cookie(cookie)
}
