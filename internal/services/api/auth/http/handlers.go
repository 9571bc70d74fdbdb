// Package http provides http transport for auth
package http

import (
	stdhttp "net/http"

	"backplane/internal/modkit/httpkit"
	"backplane/internal/services/api/auth/domain"
	svc "backplane/internal/services/api/auth/service"
)

// Register mounts auth endpoints on the given router. The session routes are
// open; /me sits behind bearer auth wired to the engine's own tokens
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.PostJSON[domain.SignUpInput](r, "/signup", h.signUp)
	httpkit.PostJSON[domain.SignInInput](r, "/signin", h.signIn)
	httpkit.Post(r, "/signout", h.signOut)
	httpkit.PostJSON[domain.ResetInput](r, "/reset-password", h.reset)

	port := httpkit.NewPortFunc(s.VerifyToken)
	httpkit.Protected(r, port, func(pr httpkit.Router) {
		httpkit.Get(pr, "/me", h.me)
	})
}

type handlers struct{ svc svc.Service }

func (h *handlers) signUp(r *stdhttp.Request, in domain.SignUpInput) (any, error) {
	sess, err := h.svc.SignUp(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(sess), nil
}

func (h *handlers) signIn(r *stdhttp.Request, in domain.SignInInput) (any, error) {
	return h.svc.SignIn(r.Context(), in.Email, in.Password)
}

func (h *handlers) signOut(r *stdhttp.Request) (any, error) {
	if err := h.svc.SignOut(r.Context()); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

func (h *handlers) reset(r *stdhttp.Request, in domain.ResetInput) (any, error) {
	if err := h.svc.ResetPassword(r.Context(), in.Email); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

func (h *handlers) me(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Me(r.Context(), uid)
}
