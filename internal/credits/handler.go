package credits

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sparefinder-backend/internal/shared/server/middleware"
	"sparefinder-backend/internal/shared/server/respond"
)

// Handler exposes balance and history endpoints.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.getCredits)
	rg.GET("/credits/transactions", h.listTransactions)
}

// RegisterDevRoutes attaches dev-only credit routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/credits/grant", h.grant)
	rg.GET("/credits/verify", h.verify)
}

func (h *Handler) getCredits(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return
	}
	respond.OK(c, h.Svc.GetUserCredits(c.Request.Context(), userID))
}

func (h *Handler) listTransactions(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "limit must be an integer", nil)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "offset must be an integer", nil)
		return
	}
	txs, err := h.Svc.GetCreditTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		WriteError(c, err)
		return
	}
	limit, offset = pageBounds(limit, offset)
	respond.Page(c, "transactions", txs, limit, offset)
}

type grantRequest struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handler) grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = middleware.UserIDFromContext(c)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Manual grant"
	}
	res, err := h.Svc.GrantCredits(c.Request.Context(), userID, req.Amount, reason, Metadata{Source: "dev"})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.Set("creditTransactionId", res.TransactionID)
	respond.OK(c, res)
}

func (h *Handler) verify(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		userID = middleware.UserIDFromContext(c)
	}
	v, err := h.Svc.VerifyLedger(c.Request.Context(), userID)
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, v)
}

// WriteError maps credit errors to HTTP responses.
func WriteError(c *gin.Context, err error) {
	var insufficient *InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", insufficient.Error(), gin.H{
			"currentCredits":  insufficient.Current,
			"requiredCredits": insufficient.Required,
		})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidType), errors.Is(err, ErrMissingUser):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "credit operation failed", nil)
	}
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
