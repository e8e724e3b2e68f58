package authcard

import (
	"context"
)

// LoginFlow owns the sign in form: fields, validation, the backend call
// and the delayed completion handoff.
type LoginFlow struct {
	env *flowEnv

	email    FieldInput
	password FieldInput

	feedback      *Feedback
	loading       bool
	authenticated bool
	shake         int

	onComplete func()
}

func newLoginFlow(env *flowEnv, onComplete func()) *LoginFlow {
	return &LoginFlow{
		env:        env,
		email:      emailField(),
		password:   passwordField("Enter your password"),
		onComplete: onComplete,
	}
}

// Submit validates creds and, when they pass, signs in against the
// backend. The returned session is non-nil only on success. Submissions
// while a call is in flight or after authentication are ignored.
func (f *LoginFlow) Submit(ctx context.Context, creds Credentials) *Session {
	proceed := false
	f.env.loop.Do(func() {
		if f.loading || f.authenticated {
			return
		}
		f.feedback = nil
		f.email.SetValue(creds.Email)
		f.password.SetValue(creds.Password)

		if verr := ValidateCredentials(creds); verr != nil {
			f.feedback = errorFeedback(verr.Message)
			f.env.record(ActivityEventLoginRejected, "", map[string]any{"field": verr.Field})
			return
		}

		f.loading = true
		proceed = true
	})
	if !proceed {
		return nil
	}

	res, err := f.env.backend.SignIn(ctx, creds.Email, creds.Password)

	var session *Session
	f.env.loop.Do(func() {
		session = f.settle(res, err)
	})
	return session
}

func (f *LoginFlow) settle(res *AuthResult, err error) *Session {
	if err == nil && (res == nil || res.User == nil) {
		err = &AuthError{}
	}

	if err != nil {
		f.loading = false
		f.feedback = errorFeedback(SignInErrorMessage(err))
		f.shake++
		f.env.logger.Info("sign in failed", "page", f.env.pageID, "error", err)
		f.env.record(ActivityEventLoginFailure, "", map[string]any{
			"invalid_credentials": IsInvalidCredentials(err),
		})
		return nil
	}

	// loading stays set: the form remains disabled through the handoff
	f.authenticated = true
	f.feedback = successFeedback("Welcome back! Signed in as " + res.User.Email)
	f.email.Clear()
	f.password.Clear()
	f.env.record(ActivityEventLoginSuccess, res.User.ID, nil)

	f.env.schedule(f.env.timings.HandoffDelay, f.complete)
	return res.Session
}

func (f *LoginFlow) complete() {
	if f.onComplete != nil {
		f.onComplete()
	}
}

// Edit records typed values without submitting. Ignored while a call is
// in flight.
func (f *LoginFlow) Edit(values FieldValues) {
	f.env.loop.Do(func() {
		if f.loading || f.authenticated {
			return
		}
		f.email.SetValue(values.Email)
	})
}

// ToggleVisibility flips the password field visibility.
func (f *LoginFlow) ToggleVisibility() {
	f.env.loop.Do(f.password.ToggleVisibility)
}

// Feedback returns the current feedback, if any.
func (f *LoginFlow) Feedback() *Feedback {
	var fb *Feedback
	f.env.loop.Read(func() {
		if f.feedback != nil {
			c := *f.feedback
			fb = &c
		}
	})
	return fb
}

// Loading reports whether the form is disabled.
func (f *LoginFlow) Loading() bool {
	var v bool
	f.env.loop.Read(func() { v = f.loading })
	return v
}

// Authenticated reports whether sign in succeeded.
func (f *LoginFlow) Authenticated() bool {
	var v bool
	f.env.loop.Read(func() { v = f.authenticated })
	return v
}

// Shake is the retrigger counter for the failure animation.
func (f *LoginFlow) Shake() int {
	var v int
	f.env.loop.Read(func() { v = f.shake })
	return v
}

func (f *LoginFlow) view() FormView {
	return FormView{
		Action:   "/login",
		Fields:   fieldViews(f.loading, f.email, f.password),
		Button:   buttonView(SubmitButton{Label: "Sign In", LoadingLabel: "Signing in…", Loading: f.loading}),
		Feedback: feedbackView(f.feedback),
		Shake:    f.shake,
		Loading:  f.loading,
		Footer: FooterView{
			Prompt: "Don't have an account?",
			Label:  "Create one free →",
			Mode:   string(ModeRegister),
		},
	}
}
