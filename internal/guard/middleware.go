package guard

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ionizer_portal/internal/session"
	"ionizer_portal/platform/apperr"
	"ionizer_portal/platform/httpkit"
	"ionizer_portal/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultSettleTimeout bounds how long a request waits for in-flight
	// profile lookups before being answered from the pending state.
	DefaultSettleTimeout = 1500 * time.Millisecond

	retryAfterSeconds = 1
)

//go:embed pages/*.html
var pages embed.FS

// Gate applies a Policy to HTTP requests bound to a browser session.
type Gate struct {
	policy      *Policy
	shell       []byte
	placeholder []byte
	settle      time.Duration
	log         *logger.Logger
}

// NewGate creates a Gate serving shell for rendered pages. A nil shell
// uses the built-in one.
func NewGate(policy *Policy, shell []byte, log *logger.Logger) *Gate {
	if shell == nil {
		shell = mustPage("shell.html")
	}
	return &Gate{
		policy:      policy,
		shell:       shell,
		placeholder: mustPage("placeholder.html"),
		settle:      DefaultSettleTimeout,
		log:         log,
	}
}

// WithSettleTimeout overrides DefaultSettleTimeout.
func (g *Gate) WithSettleTimeout(d time.Duration) *Gate {
	g.settle = d
	return g
}

// Policy returns the gate's route policy.
func (g *Gate) Policy() *Policy { return g.policy }

// LoadShell reads index.html from staticDir. An empty staticDir yields nil.
func LoadShell(staticDir string) ([]byte, error) {
	if staticDir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(staticDir, "index.html"))
	if err != nil {
		return nil, fmt.Errorf("read SPA shell: %w", err)
	}
	return data, nil
}

func mustPage(name string) []byte {
	data, err := pages.ReadFile("pages/" + name)
	if err != nil {
		panic("guard: missing embedded page " + name)
	}
	return data
}

// State returns the request's session state, giving in-flight lookups up
// to the settle timeout to finish. Requests without a session entry are
// treated as signed out.
func (g *Gate) State(c *gin.Context) session.State {
	entry, ok := session.EntryFrom(c)
	if !ok {
		return session.State{}
	}

	state := entry.Store.Snapshot()
	if !state.Loading || g.settle <= 0 {
		return state
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), g.settle)
	defer cancel()
	if err := entry.Store.Wait(ctx); err != nil {
		g.log.WithContext(c.Request.Context()).Debug("session still loading", "path", c.Request.URL.Path)
	}
	return entry.Store.Snapshot()
}

// Page answers browser navigations: a redirect, the loading placeholder,
// or the SPA shell. Unknown API paths get a JSON 404.
func (g *Gate) Page() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			httpkit.HandleError(c, apperr.NotFound("not found"))
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			httpkit.Error(c, http.StatusMethodNotAllowed, "method not allowed", nil)
			return
		}

		out := Evaluate(g.policy, g.State(c), c.Request.URL.Path)
		c.Header("Cache-Control", "no-store")

		switch out.Decision {
		case RedirectLogin, RedirectRoleHome:
			c.Redirect(http.StatusSeeOther, out.Location)
		case ShowPlaceholder:
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
			c.Data(http.StatusOK, "text/html; charset=utf-8", g.placeholder)
		default:
			c.Data(http.StatusOK, "text/html; charset=utf-8", g.shell)
		}
	}
}

// RequireAuthenticated rejects API requests without a signed-in principal:
// 503 while the session is still loading, 401 when signed out.
func (g *Gate) RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := g.State(c)
		switch StatusOf(state) {
		case StatusPending:
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
			abort(c, apperr.Pending("Session is still loading"))
			return
		case StatusUnauthenticated:
			abort(c, apperr.Unauthorized("Authentication required"))
			return
		}

		httpkit.SetIdentity(c, state.Principal.ID, state.IsAdmin, string(state.Role))
		c.Next()
	}
}

// RequireAdmin rejects principals without an admin grant. It must run
// after RequireAuthenticated.
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := httpkit.MustGetIdentity(c)
		if id == nil {
			return
		}
		if !id.IsAdmin() {
			abort(c, apperr.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err *apperr.Error) {
	httpkit.HandleError(c, err)
	c.Abort()
}
