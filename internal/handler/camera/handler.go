package camera

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/obex-alerts/internal/middleware"
	"github.com/jwalitptl/obex-alerts/internal/model"
	cameraService "github.com/jwalitptl/obex-alerts/internal/service/camera"
	"github.com/jwalitptl/obex-alerts/pkg/errors"
	"github.com/jwalitptl/obex-alerts/pkg/httputil"
)

const createdMessage = "Camera created successfully"

type Handler struct {
	service cameraService.CameraServicer
	auth    *middleware.AuthMiddleware
}

func NewHandler(service cameraService.CameraServicer, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cameras := r.Group("/cameras", h.auth.Authenticate())
	{
		cameras.POST("/create", h.CreateCamera)
		cameras.POST("", h.CreateCamera)
		cameras.GET("", h.ListCameras)
	}
}

func (h *Handler) CreateCamera(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.CreateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	camera, err := h.service.Register(c.Request.Context(), userID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, &httputil.Response{
		Status:  "success",
		Message: createdMessage,
		Data:    camera,
	})
}

func (h *Handler) ListCameras(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	cameras, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, cameras)
}
