package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/middleware"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/apperrors"
	"github.com/propgate/propgate/internal/service"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	tracker *service.Tracker
}

func NewAccountHandler(tracker *service.Tracker) *AccountHandler {
	return &AccountHandler{tracker: tracker}
}

// List GET /api/v1/accounts
func (h *AccountHandler) List(c *gin.Context) {
	accounts := h.tracker.Accounts()
	// Never leak producer keys over the read API.
	sanitized := make([]model.TrackedAccount, 0, len(accounts))
	for _, a := range accounts {
		a.APIKey = ""
		sanitized = append(sanitized, a)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": sanitized})
}

type registerAccountRequest struct {
	ID              string  `json:"id" binding:"required"`
	Name            string  `json:"name"`
	Firm            string  `json:"firm" binding:"required"`
	AccountType     string  `json:"account_type" binding:"required"`
	RuleVersion     string  `json:"rule_version"`
	StartingBalance string  `json:"starting_balance" binding:"required"`
	APIKey          string  `json:"api_key"`
	QPS             float64 `json:"qps"`
	Burst           int     `json:"burst"`
}

// Register POST /api/v1/accounts
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	balance, err := decimal.NewFromString(req.StartingBalance)
	if err != nil || balance.Sign() <= 0 {
		c.Error(apperrors.NewInvalidRequest("starting_balance must be a positive decimal string"))
		return
	}

	name := req.Name
	if name == "" {
		name = req.ID
	}
	account := model.TrackedAccount{
		ID:              req.ID,
		Name:            name,
		Firm:            req.Firm,
		AccountType:     req.AccountType,
		RuleVersion:     req.RuleVersion,
		StartingBalance: balance,
		APIKey:          req.APIKey,
		Rate:            model.RateLimitConfig{QPS: req.QPS, Burst: req.Burst},
	}
	if err := h.tracker.Register(account); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": account.ID, "status": "registered"})
}

// Get GET /api/v1/accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	id := c.Param("id")
	account, ok := h.tracker.Account(id)
	if !ok {
		c.Error(apperrors.NewNotFound(fmt.Sprintf("account not tracked: %s", id)))
		return
	}
	account.APIKey = ""

	latest, err := h.tracker.Latest(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "state": latest})
}

// State GET /api/v1/accounts/:id/state
func (h *AccountHandler) State(c *gin.Context) {
	id := c.Param("id")
	latest, err := h.tracker.Latest(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	if latest == nil {
		c.Error(apperrors.NewNotFound(fmt.Sprintf("no evaluation yet for account: %s", id)))
		return
	}
	c.JSON(http.StatusOK, latest)
}

// History GET /api/v1/accounts/:id/history
func (h *AccountHandler) History(c *gin.Context) {
	id := c.Param("id")
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	results, err := h.tracker.History(c.Request.Context(), id, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "history": results})
}

// Snapshot POST /api/v1/accounts/:id/snapshot
// The producer ingest path: applies the snapshot and returns the evaluation.
func (h *AccountHandler) Snapshot(c *gin.Context) {
	id := c.Param("id")
	account, ok := h.tracker.Account(id)
	if !ok {
		c.Error(apperrors.NewNotFound(fmt.Sprintf("account not tracked: %s", id)))
		return
	}

	// Per-account producer key, on top of the gateway key.
	if account.APIKey != "" && c.GetHeader(middleware.HeaderGatewayKey) != account.APIKey {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid producer key for account", nil))
		return
	}

	var upd service.SnapshotUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	upd.AccountID = id

	result, err := h.tracker.Ingest(c.Request.Context(), &upd)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
