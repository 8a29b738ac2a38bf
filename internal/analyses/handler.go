package analyses

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sparefinder-backend/internal/credits"
	"sparefinder-backend/internal/shared/server/middleware"
	"sparefinder-backend/internal/shared/server/respond"
	"sparefinder-backend/internal/shared/storage/object"
)

// maxUploadBytes leaves room for multipart framing around a full-size image.
const maxUploadBytes = MaxImageBytes + 1<<20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) startAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return
	}

	if c.Request.ContentLength > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds 10 MB", nil)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds 10 MB", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart field \"image\" is required", nil)
		return
	}
	if fileHeader.Size > MaxImageBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds 10 MB", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read image", nil)
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	f.Close()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read image", nil)
		return
	}

	analysis, err := h.Svc.Run(c.Request.Context(), RunInput{
		UserID:    userID,
		RequestID: middleware.RequestIDFromContext(c),
		FileName:  fileHeader.Filename,
		Image:     data,
	})
	if analysis.ID != "" {
		c.Set("analysisId", analysis.ID)
		c.Set("creditTransactionId", analysis.CreditTransactionID)
	}
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrInsufficientCredits):
			credits.WriteError(c, err)
		case errors.Is(err, object.ErrUnsupportedImage):
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_image", "image must be JPEG, PNG, WebP or GIF", nil)
		case errors.Is(err, ErrInvalidFileName):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid image file name", nil)
		case errors.Is(err, ErrImageTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds 10 MB", nil)
		case errors.Is(err, ErrAnalysisFailed):
			msg := "analysis failed, your credit was refunded"
			if !analysis.Refunded() {
				msg = "analysis failed, the refund is pending review"
			}
			respond.Error(c, http.StatusBadGateway, "analysis_failed", msg, gin.H{
				"analysisId": analysis.ID,
				"errorCode":  analysis.ErrorCode,
				"refunded":   analysis.Refunded(),
			})
		default:
			credits.WriteError(c, err)
		}
		return
	}

	respond.Created(c, analysis)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysis, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	limit, offset = pageBounds(limit, offset)
	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.Page(c, "analyses", items, limit, offset)
}
