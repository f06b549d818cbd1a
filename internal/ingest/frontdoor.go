// Package ingest is the front door between parsed mail and the
// reconciliation engine. It validates the envelope, tokenizes the body
// within the configured limits, and dispatches to the engine.
package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/communalgrowth/docsub/internal/engine"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/id"
	"github.com/communalgrowth/docsub/internal/normalize"
	"github.com/communalgrowth/docsub/internal/validation"
)

// Action is what a message asks for. It is chosen by the address the
// message was sent to.
type Action string

// Actions.
const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionForget      Action = "forget"
)

// Actions lists every action in a stable order.
var Actions = []Action{ActionSubscribe, ActionUnsubscribe, ActionForget}

func (a Action) String() string { return string(a) }

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionSubscribe, ActionUnsubscribe, ActionForget:
		return a, nil
	default:
		return "", errors.Validationf("unknown action %q (must be subscribe, unsubscribe, or forget)", s)
	}
}

// Envelope is a message reduced to its sender and body lines.
type Envelope struct {
	Sender string   `json:"sender" validate:"required,email"`
	Lines  []string `json:"lines"`
}

// Engine is the part of the reconciliation engine the front door drives.
type Engine interface {
	Subscribe(ctx context.Context, sender string, tokens []string) (*engine.Report, error)
	Unsubscribe(ctx context.Context, sender string, tokens []string) (*engine.Report, error)
	Forget(ctx context.Context, sender string) (*engine.Report, error)
}

// Result describes one handled message.
type Result struct {
	RunID  string         `json:"run_id"`
	Action Action         `json:"action"`
	Sender string         `json:"sender"`
	Tokens []string       `json:"tokens,omitempty"`
	Report *engine.Report `json:"report"`
}

// FrontDoor validates and dispatches messages. It is safe for concurrent use.
type FrontDoor struct {
	engine    Engine
	validator *validation.Validator
	limits    Limits
	logger    *slog.Logger
}

// NewFrontDoor creates a front door applying maxDocIDs to every limit.
func NewFrontDoor(eng Engine, maxDocIDs int, logger *slog.Logger) *FrontDoor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FrontDoor{
		engine:    eng,
		validator: validation.New(),
		limits:    UniformLimits(maxDocIDs),
		logger:    logger,
	}
}

// Limits returns the limits applied to message bodies.
func (f *FrontDoor) Limits() Limits { return f.limits }

// Handle runs action for env. An invalid sender is a validation error and
// nothing reaches the engine.
func (f *FrontDoor) Handle(ctx context.Context, action Action, env Envelope) (*Result, error) {
	runID := id.Message()
	log := f.logger.With("run_id", runID, "action", action)

	env.Sender = normalize.Email(env.Sender)
	if err := f.validator.Validate(env); err != nil {
		log.Warn("dropping message", "sender", env.Sender, "error", err)
		return nil, err
	}

	res := &Result{RunID: runID, Action: action, Sender: env.Sender}

	var err error
	switch action {
	case ActionSubscribe:
		res.Tokens = Tokenize(env.Lines, f.limits)
		res.Report, err = f.engine.Subscribe(ctx, env.Sender, res.Tokens)
	case ActionUnsubscribe:
		res.Tokens = Tokenize(env.Lines, f.limits)
		res.Report, err = f.engine.Unsubscribe(ctx, env.Sender, res.Tokens)
	case ActionForget:
		res.Report, err = f.engine.Forget(ctx, env.Sender)
	default:
		return nil, errors.Validationf("unknown action %q", action)
	}
	if err != nil {
		log.Error("message failed", "sender", env.Sender, "error", err)
		return nil, err
	}

	log.Debug("message handled", "sender", env.Sender, "tokens", len(res.Tokens))
	return res, nil
}
