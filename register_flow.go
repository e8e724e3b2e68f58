package authcard

import (
	"context"
	"strings"

	"github.com/goliatone/go-print"
)

// RegisterFlow owns the registration form. Profile insertion after sign
// up is best-effort: the account already exists when it runs.
type RegisterFlow struct {
	env *flowEnv

	name     FieldInput
	email    FieldInput
	password FieldInput

	feedback *Feedback
	loading  bool

	onSuccess func(RegisteredUser)
}

func newRegisterFlow(env *flowEnv, onSuccess func(RegisteredUser)) *RegisterFlow {
	return &RegisterFlow{
		env:       env,
		name:      nameField(),
		email:     emailField(),
		password:  passwordField("Min 8 chars, 1 uppercase, 1 number"),
		onSuccess: onSuccess,
	}
}

// Submit validates the profile, creates the account and inserts the
// profile record. It returns the registered user on success.
func (f *RegisterFlow) Submit(ctx context.Context, p RegistrationProfile) (*RegisteredUser, error) {
	proceed := false
	var rejected error
	f.env.loop.Do(func() {
		if f.loading {
			return
		}
		f.feedback = nil
		f.name.SetValue(p.Name)
		f.email.SetValue(p.Email)
		f.password.SetValue(p.Password)

		if verr := ValidateRegistration(p); verr != nil {
			f.feedback = errorFeedback(verr.Message)
			f.env.record(ActivityEventRegisterRejected, "", map[string]any{"field": verr.Field})
			rejected = verr
			return
		}

		f.loading = true
		proceed = true
	})
	if !proceed {
		return nil, rejected
	}

	name := strings.TrimSpace(p.Name)
	userID, err := f.createAccount(ctx, p, name)
	if err == nil {
		f.insertProfile(ctx, NewProfileRecord(userID, name, p.Email, f.env.now()))
	}

	var registered *RegisteredUser
	f.env.loop.Do(func() {
		f.loading = false
		if err != nil {
			f.feedback = errorFeedback(SignUpErrorMessage(err))
			f.env.logger.Info("sign up failed", "page", f.env.pageID, "error", err)
			f.env.record(ActivityEventRegisterFailure, "", map[string]any{
				"already_registered": IsAlreadyRegistered(err),
			})
			return
		}

		f.password.Clear()
		registered = &RegisteredUser{Name: name, Email: p.Email}
		f.env.record(ActivityEventRegisterSuccess, userID, nil)
		if f.onSuccess != nil {
			f.onSuccess(*registered)
		}
	})
	return registered, err
}

func (f *RegisterFlow) createAccount(ctx context.Context, p RegistrationProfile, name string) (string, error) {
	res, err := f.env.backend.SignUp(ctx, p.Email, p.Password, SignUpOptions{DisplayName: name})
	if err != nil {
		return "", err
	}
	if res == nil || res.User == nil || strings.TrimSpace(res.User.ID) == "" {
		return "", ErrMissingUserID
	}
	return res.User.ID, nil
}

func (f *RegisterFlow) insertProfile(ctx context.Context, record ProfileRecord) {
	if err := f.env.backend.InsertProfile(ctx, record); err != nil {
		f.env.logger.Warn("profile insert warning", "page", f.env.pageID, "user_id", record.ID, "error", err)
		f.env.record(ActivityEventProfileInsertFailure, record.ID, map[string]any{"error": err.Error()})
		return
	}
	f.env.logger.Debug("profile inserted", "record", print.MaybePrettyJSON(map[string]any{
		"id":         record.ID,
		"created_at": record.CreatedAt,
	}))
}

// Edit records typed values without submitting.
func (f *RegisterFlow) Edit(values FieldValues) {
	f.env.loop.Do(func() {
		if f.loading {
			return
		}
		f.name.SetValue(values.Name)
		f.email.SetValue(values.Email)
	})
}

// ToggleVisibility flips the password field visibility.
func (f *RegisterFlow) ToggleVisibility() {
	f.env.loop.Do(f.password.ToggleVisibility)
}

// Feedback returns the current feedback, if any.
func (f *RegisterFlow) Feedback() *Feedback {
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
func (f *RegisterFlow) Loading() bool {
	var v bool
	f.env.loop.Read(func() { v = f.loading })
	return v
}

func (f *RegisterFlow) view() FormView {
	return FormView{
		Action:   "/register",
		Fields:   fieldViews(f.loading, f.name, f.email, f.password),
		Button:   buttonView(SubmitButton{Label: "Create Account", LoadingLabel: "Creating account…", Loading: f.loading}),
		Feedback: feedbackView(f.feedback),
		Loading:  f.loading,
		Footer: FooterView{
			Prompt: "Already have an account?",
			Label:  "Sign in →",
			Mode:   string(ModeSignIn),
		},
	}
}
