package authcard

import (
	"math"
	"time"
)

// FieldView is a rendered input.
type FieldView struct {
	Name         string
	Label        string
	Type         string
	Placeholder  string
	Icon         string
	Value        string
	Autocomplete string
	Disabled     bool
	IsPassword   bool
	Visible      bool
	ToggleLabel  string
	ToggleIcon   string
}

// ButtonView is a rendered submit control.
type ButtonView struct {
	Text     string
	Disabled bool
	Loading  bool
}

// FeedbackView is a rendered feedback message. Errors are announced as
// alerts, successes as status updates.
type FeedbackView struct {
	Kind    string
	Message string
	Icon    string
	Class   string
	Role    string
}

// FooterView is the link to the other form.
type FooterView struct {
	Prompt string
	Label  string
	Mode   string
}

// FormView is a rendered flow.
type FormView struct {
	Action   string
	Fields   []FieldView
	Button   ButtonView
	Feedback *FeedbackView
	Shake    int
	Loading  bool
	Footer   FooterView
}

// TabView is one entry of the tab switcher.
type TabView struct {
	Mode   string
	Label  string
	Active bool
}

// SuccessView is the post registration panel.
type SuccessView struct {
	Name  string
	Email string
}

// PageView is everything the templates need to draw a page.
type PageView struct {
	ID        string
	Mode      string
	Direction int
	Offset    int

	Tabs    []TabView
	Form    *FormView
	Success *SuccessView

	// Refresh is the meta refresh delay in seconds, zero for none.
	Refresh       int
	RefreshTarget string

	Exiting      bool
	Overlay      bool
	ExitDuration int
	Navigated    bool
	Destination  string

	Failed  bool
	Failure string
}

// View renders the current state of the page.
func (p *Page) View() PageView {
	var v PageView
	p.env.loop.Read(func() { v = p.view() })
	return v
}

func (p *Page) view() PageView {
	now := p.env.now()
	v := PageView{
		ID:          p.id,
		Mode:        string(p.card.mode),
		Direction:   int(p.card.direction),
		Offset:      p.card.direction.Offset(),
		Exiting:     p.shell.exiting,
		Navigated:   p.shell.navigated,
		Destination: p.shell.destination,
		Failed:      p.failed,
		Failure:     p.failure,
	}

	switch {
	case p.card.login != nil:
		f := p.card.login.view()
		v.Form = &f
		if p.card.login.authenticated && !p.shell.exiting {
			v.Refresh = seconds(p.env.timings.HandoffDelay)
			v.RefreshTarget = "/"
		}
	case p.card.register != nil:
		f := p.card.register.view()
		v.Form = &f
	case p.card.registered != nil:
		v.Success = &SuccessView{Name: p.card.registered.Name, Email: p.card.registered.Email}
	}
	if p.card.mode != ModeRegistrationSuccess {
		v.Tabs = tabViews(p.card.mode)
	}

	if p.shell.exiting && !p.shell.navigated {
		v.Overlay = now.Sub(p.shell.exitStartedAt) < p.env.timings.ExitDuration
		v.ExitDuration = int(p.env.timings.ExitDuration / time.Millisecond)
		v.Refresh = seconds(p.shell.remaining(now))
		v.RefreshTarget = p.shell.destination
	}
	return v
}

func tabViews(active ViewMode) []TabView {
	return []TabView{
		{Mode: string(ModeSignIn), Label: "Sign In", Active: active == ModeSignIn},
		{Mode: string(ModeRegister), Label: "Create Account", Active: active == ModeRegister},
	}
}

func fieldViews(disabled bool, fields ...FieldInput) []FieldView {
	out := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldView{
			Name:         f.Name,
			Label:        f.Label,
			Type:         f.InputType(),
			Placeholder:  f.Placeholder,
			Icon:         f.Icon,
			Value:        f.RenderValue(),
			Autocomplete: f.Autocomplete(),
			Disabled:     disabled || f.Disabled,
			IsPassword:   f.IsPassword,
			Visible:      f.Visible,
			ToggleLabel:  f.ToggleLabel(),
			ToggleIcon:   f.ToggleIcon(),
		})
	}
	return out
}

func buttonView(b SubmitButton) ButtonView {
	return ButtonView{Text: b.Text(), Disabled: b.Loading, Loading: b.Loading}
}

func feedbackView(fb *Feedback) *FeedbackView {
	if fb == nil {
		return nil
	}
	role := "status"
	if fb.IsError() {
		role = "alert"
	}
	return &FeedbackView{
		Kind:    string(fb.Kind),
		Message: fb.Message,
		Icon:    fb.Icon(),
		Class:   fb.Class(),
		Role:    role,
	}
}

// seconds rounds d up to whole seconds for a meta refresh. Any positive
// delay yields at least one second.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
