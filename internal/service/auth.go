package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"driftwood/internal/gateway"
	"driftwood/internal/store"
)

var errLoginRejected = errors.New("login was not completed")

// AuthService drives the deployment-provider session held by the backend.
type AuthService struct {
	gw      Gateway
	proc    *gateway.Processor
	session *store.SessionStore
	logger  *slog.Logger
}

func NewAuthService(gw Gateway, proc *gateway.Processor, session *store.SessionStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		gw:      gw,
		proc:    proc,
		session: session,
		logger:  logger.With("workflow", "auth"),
	}
}

// Login asks the backend to run the provider's login flow. A body of false
// means the user did not finish it.
func (s *AuthService) Login(ctx context.Context) error {
	const op = "login"
	ticket := s.session.Begin()

	env, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdLogin, gateway.NoArgs())
	if err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	if len(env.Body) > 0 {
		var ok bool
		if json.Unmarshal(env.Body, &ok) == nil && !ok {
			s.session.Apply(ticket, false)
			return &Error{Kind: KindApplication, Op: op, Status: env.Status, Message: loginMessage(env.Message), Err: errLoginRejected}
		}
	}

	s.session.Apply(ticket, true)
	s.logger.Info("logged in")
	return nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	const op = "logout"
	ticket := s.session.Begin()

	if _, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdLogout, gateway.NoArgs()); err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	s.session.Apply(ticket, false)
	s.logger.Info("logged out")
	return nil
}

// CheckToken asks whether the backend's stored token is still usable.
func (s *AuthService) CheckToken(ctx context.Context) (bool, error) {
	const op = "check token"
	ticket := s.session.Begin()

	env, err := gateway.Call[bool](ctx, s.gw, s.proc, gateway.CmdCheckToken, gateway.NoArgs())
	if err != nil {
		return false, classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return false, aborted(ctx, op)
	}
	if !s.session.Apply(ticket, env.Body) {
		s.logger.Debug("discarding stale token check")
	}
	return env.Body, nil
}

func loginMessage(msg string) string {
	if msg == "" {
		return errLoginRejected.Error()
	}
	return msg
}
