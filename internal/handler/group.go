package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/apperrors"
	"github.com/propgate/propgate/internal/service"
)

type GroupHandler struct {
	tracker *service.Tracker
}

func NewGroupHandler(tracker *service.Tracker) *GroupHandler {
	return &GroupHandler{tracker: tracker}
}

// List GET /api/v1/groups
func (h *GroupHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.tracker.Groups()})
}

type createGroupRequest struct {
	ID       string   `json:"id" binding:"required"`
	Name     string   `json:"name"`
	Accounts []string `json:"accounts" binding:"required"`
}

// Create POST /api/v1/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	name := req.Name
	if name == "" {
		name = req.ID
	}
	h.tracker.RegisterGroup(model.AccountGroup{
		ID:         req.ID,
		Name:       name,
		AccountIDs: req.Accounts,
	})
	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "status": "created"})
}

// Risk GET /api/v1/groups/:id/risk
// Weakest-account view: the group is only as safe as its weakest member.
func (h *GroupHandler) Risk(c *gin.Context) {
	eval, err := h.tracker.EvaluateGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, eval)
}
