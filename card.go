package authcard

import (
	"fmt"
)

// TransitionTrigger says what caused a view mode change.
type TransitionTrigger string

const (
	TriggerTab         TransitionTrigger = "tab"
	TriggerLink        TransitionTrigger = "link"
	TriggerFlowSuccess TransitionTrigger = "flow_success"
	TriggerSignInNow   TransitionTrigger = "sign_in_now"
)

// Card is the view state machine. Exactly one of the login flow, the
// registration flow or the success panel is mounted at a time.
type Card struct {
	env *flowEnv

	transitions map[ViewMode]map[ViewMode]struct{}

	mode       ViewMode
	direction  Direction
	registered *RegisteredUser

	login    *LoginFlow
	register *RegisterFlow

	onLoginComplete func()
}

func newCard(env *flowEnv, onLoginComplete func()) *Card {
	c := &Card{
		env: env,
		transitions: map[ViewMode]map[ViewMode]struct{}{
			ModeSignIn: {
				ModeRegister: {},
			},
			ModeRegister: {
				ModeSignIn:              {},
				ModeRegistrationSuccess: {},
			},
			ModeRegistrationSuccess: {
				ModeSignIn: {},
			},
		},
		mode:            ModeSignIn,
		direction:       DirectionForward,
		onLoginComplete: onLoginComplete,
	}
	c.mount()
	return c
}

// SwitchTo handles the tab and footer link actions between sign in and
// register.
func (c *Card) SwitchTo(mode ViewMode, trigger TransitionTrigger) error {
	var err error
	c.env.loop.Do(func() {
		if mode == ModeRegistrationSuccess {
			err = fmt.Errorf("%w: %s cannot be entered from %s", ErrInvalidTransition, mode, trigger)
			return
		}
		err = c.transition(mode, trigger)
	})
	return err
}

// SignInNow leaves the post registration panel for the sign in form.
func (c *Card) SignInNow() error {
	var err error
	c.env.loop.Do(func() {
		if c.mode != ModeRegistrationSuccess {
			err = fmt.Errorf("%w: sign in now from %s", ErrInvalidTransition, c.mode)
			return
		}
		err = c.transition(ModeSignIn, TriggerSignInNow)
	})
	return err
}

func (c *Card) transition(target ViewMode, trigger TransitionTrigger) error {
	from := c.mode
	if from == target {
		return nil
	}

	if _, ok := c.transitions[from][target]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}
	// the success panel only has the sign in now action
	if from == ModeRegistrationSuccess && trigger != TriggerSignInNow {
		return fmt.Errorf("%w: %s -> %s by %s", ErrInvalidTransition, from, target, trigger)
	}

	switch target {
	case ModeRegister:
		c.direction = DirectionForward
	case ModeSignIn:
		c.direction = DirectionBackward
	}
	if target != ModeRegistrationSuccess {
		c.registered = nil
	}

	c.mode = target
	c.mount()

	c.env.record(ActivityEventModeChanged, "", map[string]any{
		"from":      string(from),
		"to":        string(target),
		"trigger":   string(trigger),
		"direction": int(c.direction),
	})
	return nil
}

// mount discards the outgoing flow and mounts a fresh one for the mode.
func (c *Card) mount() {
	c.login = nil
	c.register = nil

	switch c.mode {
	case ModeSignIn:
		c.login = newLoginFlow(c.env, c.handleLoginComplete)
	case ModeRegister:
		c.register = newRegisterFlow(c.env, c.handleRegistered)
	}
}

func (c *Card) handleLoginComplete() {
	if c.onLoginComplete != nil {
		c.onLoginComplete()
	}
}

func (c *Card) handleRegistered(user RegisteredUser) {
	if c.mode != ModeRegister {
		c.env.logger.Warn("registration completed after the form was left",
			"page", c.env.pageID, "mode", string(c.mode))
		return
	}
	if err := c.transition(ModeRegistrationSuccess, TriggerFlowSuccess); err != nil {
		c.env.logger.Error("registration success transition", "page", c.env.pageID, "error", err)
		return
	}
	c.registered = &user
}

// restore sets mode and direction from a snapshot. The success panel needs
// data that is never persisted, so it restores to sign in.
func (c *Card) restore(mode ViewMode, direction Direction) {
	if mode == ModeRegistrationSuccess || mode == "" {
		mode = ModeSignIn
	}
	if direction == 0 {
		direction = DirectionForward
	}
	c.mode = mode
	c.direction = direction
	c.mount()
}

// Mode returns the current view mode.
func (c *Card) Mode() ViewMode {
	var m ViewMode
	c.env.loop.Read(func() { m = c.mode })
	return m
}

// Direction returns the animation direction of the last switch.
func (c *Card) Direction() Direction {
	var d Direction
	c.env.loop.Read(func() { d = c.direction })
	return d
}

// Registered returns the data shown on the success panel.
func (c *Card) Registered() *RegisteredUser {
	var r *RegisteredUser
	c.env.loop.Read(func() {
		if c.registered != nil {
			v := *c.registered
			r = &v
		}
	})
	return r
}

// Login returns the mounted login flow or nil.
func (c *Card) Login() *LoginFlow {
	var f *LoginFlow
	c.env.loop.Read(func() { f = c.login })
	return f
}

// Register returns the mounted registration flow or nil.
func (c *Card) Register() *RegisterFlow {
	var f *RegisterFlow
	c.env.loop.Read(func() { f = c.register })
	return f
}
