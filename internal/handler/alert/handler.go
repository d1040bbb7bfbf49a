package alert

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/obex-alerts/internal/middleware"
	"github.com/jwalitptl/obex-alerts/internal/model"
	alertService "github.com/jwalitptl/obex-alerts/internal/service/alert"
	"github.com/jwalitptl/obex-alerts/pkg/errors"
	"github.com/jwalitptl/obex-alerts/pkg/httputil"
	"github.com/jwalitptl/obex-alerts/pkg/validator"
)

type Handler struct {
	service alertService.AlertServicer
	auth    *middleware.AuthMiddleware
	limiter gin.HandlerFunc
}

// NewHandler wires the alert endpoints. limiter may be nil.
func NewHandler(service alertService.AlertServicer, auth *middleware.AuthMiddleware, limiter gin.HandlerFunc) *Handler {
	validator.RegisterGin()
	return &Handler{service: service, auth: auth, limiter: limiter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	ingest := []gin.HandlerFunc{h.CreateAlert}
	if h.limiter != nil {
		ingest = append([]gin.HandlerFunc{h.limiter}, ingest...)
	}

	alerts := r.Group("/alerts")
	{
		alerts.POST("/create", ingest...)
		alerts.POST("", ingest...)
		alerts.GET("", h.auth.Authenticate(), h.ListAlerts)
	}
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var req model.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	alert, err := h.service.Ingest(c.Request.Context(), &req, model.SourceHTTP)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, alert)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	alerts, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(alerts))
}
