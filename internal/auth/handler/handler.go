package handler

import (
	"context"
	"net/http"
	"time"

	"ionizer_portal/internal/auth/service"
	"ionizer_portal/internal/auth/transport"
	"ionizer_portal/internal/identity"
	"ionizer_portal/internal/session"
	"ionizer_portal/platform/apperr"
	"ionizer_portal/platform/httpkit"
	"ionizer_portal/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest = "invalid request"
	msgNoSession      = "session unavailable"

	// settleTimeout bounds the wait for profile lookups before answering
	// with a navigation hint.
	settleTimeout = 3 * time.Second
)

// Homes picks the landing page for a session state.
type Homes interface {
	HomeFor(state session.State) string
}

type Handler struct {
	svc       *service.Service
	homes     Homes
	loginPath string
	validate  *validator.Validator
}

func New(svc *service.Service, homes Homes, loginPath string) *Handler {
	return &Handler{svc: svc, homes: homes, loginPath: loginPath, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sign-in", h.SignIn)
	rg.POST("/sign-up", h.SignUp)
	rg.POST("/sign-out", h.SignOut)
	rg.GET("/oauth/:provider", h.OAuthStart)
}

func (h *Handler) SignIn(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	var req transport.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	s, err := h.svc.SignInWithPassword(c.Request.Context(), entry.Auth, req.Email, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.AuthResponse{
		Message: service.MsgSignedIn,
		Next:    h.home(c.Request.Context(), entry),
		Session: sessionInfo(s),
	})
}

func (h *Handler) SignUp(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	var req transport.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	s, err := h.svc.SignUpWithPassword(c.Request.Context(), entry.Auth, req.Email, req.Password, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.AuthResponse{Message: service.MsgSignedUp, Next: h.loginPath}
	if s != nil {
		// Confirmed immediately; no verification step.
		resp.Next = h.home(c.Request.Context(), entry)
		resp.Session = sessionInfo(s)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) SignOut(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	if err := h.svc.SignOut(c.Request.Context(), entry.Auth); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: service.MsgSignedOut})
}

// OAuthStart redirects the browser to the provider.
func (h *Handler) OAuthStart(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	redirect, err := h.svc.SignInWithOAuth(c.Request.Context(), entry.Auth, c.Param("provider"))
	if httpkit.HandleError(c, err) {
		return
	}
	c.Redirect(http.StatusSeeOther, redirect.URL)
}

// OAuthCallback completes the flow and lands the browser on its home.
// Failures go back to the login page; the reason arrives as a toast.
func (h *Handler) OAuthCallback(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	if desc := c.Query("error_description"); desc != "" {
		h.svc.OAuthDenied(c.Request.Context(), entry.Auth, desc)
		c.Redirect(http.StatusSeeOther, h.loginPath)
		return
	}

	if _, err := h.svc.CompleteOAuth(c.Request.Context(), entry.Auth, c.Query("code")); err != nil {
		c.Redirect(http.StatusSeeOther, h.loginPath)
		return
	}
	c.Redirect(http.StatusSeeOther, h.home(c.Request.Context(), entry))
}

// Session returns the browser's current session state.
func (h *Handler) Session(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	httpkit.OK(c, entry.Store.Snapshot())
}

func (h *Handler) entry(c *gin.Context) (*session.Entry, bool) {
	entry, ok := session.EntryFrom(c)
	if !ok {
		httpkit.HandleError(c, apperr.Internal(msgNoSession))
		return nil, false
	}
	return entry, true
}

// home waits briefly for the store to learn the admin status of the new
// principal and returns its landing page.
func (h *Handler) home(ctx context.Context, entry *session.Entry) string {
	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	_ = entry.Store.Wait(waitCtx)
	return h.homes.HomeFor(entry.Store.Snapshot())
}

func sessionInfo(s *identity.Session) *transport.SessionInfo {
	if s == nil {
		return nil
	}
	return &transport.SessionInfo{
		Principal: session.PrincipalOf(s),
		ExpiresAt: s.Expiry(),
	}
}
