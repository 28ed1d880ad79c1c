package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/rules"
)

type RulesHandler struct {
	loader *rules.Loader
}

func NewRulesHandler(loader *rules.Loader) *RulesHandler {
	return &RulesHandler{loader: loader}
}

// Firms GET /api/v1/firms
func (h *RulesHandler) Firms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"firms":         rules.SupportedFirms(),
		"account_types": rules.SupportedAccountTypes(),
	})
}

// Rules GET /api/v1/firms/:firm/:account_type
// Exposes the rule preset the engine evaluates against, for dashboards.
func (h *RulesHandler) Rules(c *gin.Context) {
	firmRules, err := h.loader.Get(c.Param("firm"), c.Param("account_type"), c.Query("version"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, firmRules)
}
