package authcard

// FeedbackKind is either success or error.
type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
)

// Feedback is the single transient message shown after a submission.
type Feedback struct {
	Kind    FeedbackKind
	Message string
}

func successFeedback(msg string) *Feedback {
	return &Feedback{Kind: FeedbackSuccess, Message: msg}
}

func errorFeedback(msg string) *Feedback {
	return &Feedback{Kind: FeedbackError, Message: msg}
}

// Icon is the glyph rendered next to the message.
func (f Feedback) Icon() string {
	if f.Kind == FeedbackSuccess {
		return "✓"
	}
	return "⚠"
}

// Class is the CSS class list for the feedback element.
func (f Feedback) Class() string {
	return "feedback " + string(f.Kind)
}

// IsError reports whether this is an error message.
func (f Feedback) IsError() bool {
	return f.Kind == FeedbackError
}
