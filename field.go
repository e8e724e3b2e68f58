package authcard

// FieldInput is a labeled form input. Password inputs own a visibility
// toggle.
type FieldInput struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
	Icon        string
	IsPassword  bool
	Value       string
	Disabled    bool
	Visible     bool
}

// SetValue records a change event.
func (f *FieldInput) SetValue(v string) {
	f.Value = v
}

// ToggleVisibility flips password visibility. It is a no-op for other inputs.
func (f *FieldInput) ToggleVisibility() {
	if !f.IsPassword {
		return
	}
	f.Visible = !f.Visible
}

// Clear drops the held value.
func (f *FieldInput) Clear() {
	f.Value = ""
}

// InputType is the HTML input type to render.
func (f FieldInput) InputType() string {
	if f.IsPassword {
		if f.Visible {
			return "text"
		}
		return "password"
	}
	return f.Type
}

// RenderValue is the value echoed into the markup. Password values are
// never written back to the page.
func (f FieldInput) RenderValue() string {
	if f.IsPassword {
		return ""
	}
	return f.Value
}

// Autocomplete returns the autocomplete hint for the input.
func (f FieldInput) Autocomplete() string {
	switch {
	case f.Type == "email":
		return "email"
	case f.IsPassword:
		return "current-password"
	default:
		return "name"
	}
}

// ToggleLabel is the accessible label of the visibility toggle.
func (f FieldInput) ToggleLabel() string {
	if f.Visible {
		return "Hide password"
	}
	return "Show password"
}

// ToggleIcon is the glyph shown on the visibility toggle.
func (f FieldInput) ToggleIcon() string {
	if f.Visible {
		return "🙈"
	}
	return "👁"
}

func nameField() FieldInput {
	return FieldInput{
		Name:        "name",
		Label:       "Full Name",
		Type:        "text",
		Placeholder: "John Appleseed",
		Icon:        "👤",
	}
}

func emailField() FieldInput {
	return FieldInput{
		Name:        "email",
		Label:       "Email Address",
		Type:        "email",
		Placeholder: "you@example.com",
		Icon:        "✉",
	}
}

func passwordField(placeholder string) FieldInput {
	return FieldInput{
		Name:        "password",
		Label:       "Password",
		Type:        "password",
		Placeholder: placeholder,
		Icon:        "🔑",
		IsPassword:  true,
	}
}

// SubmitButton describes the form's submit control.
type SubmitButton struct {
	Label        string
	LoadingLabel string
	Loading      bool
}

// Text is the label for the current state.
func (b SubmitButton) Text() string {
	if b.Loading {
		return b.LoadingLabel
	}
	return b.Label
}
