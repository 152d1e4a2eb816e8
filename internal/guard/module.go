package guard

import (
	apphttp "ionizer_portal/internal/http"
	"ionizer_portal/platform/apperr"
	"ionizer_portal/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes route decisions to client-side routers.
type Module struct {
	gate *Gate
}

// NewModule creates the guard module.
func NewModule(gate *Gate) *Module {
	return &Module{gate: gate}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "guard"
}

// RegisterRoutes mounts guard routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/guard", m.Decide)
}

type decideQuery struct {
	Path string `form:"path" binding:"required"`
}

// Decide evaluates ?path= against the caller's session.
func (m *Module) Decide(c *gin.Context) {
	var q decideQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("path is required"))
		return
	}

	out := Evaluate(m.gate.Policy(), m.gate.State(c), q.Path)
	c.Header("Cache-Control", "no-store")
	httpkit.OK(c, out)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
