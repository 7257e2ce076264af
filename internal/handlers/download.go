package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/linerelay/linerelay/internal/auth"
	"github.com/linerelay/linerelay/internal/download"
)

type downloadService interface {
	Start(ctx context.Context, url string) (download.Record, error)
	Get(id string) (download.Record, error)
	List() []download.Record
}

// CreateDownloadRequest starts a Spaces download.
type CreateDownloadRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type DownloadHandler struct {
	service  downloadService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewDownloadHandler(log *slog.Logger, service *download.Service) *DownloadHandler {
	return newDownloadHandler(log, service)
}

func newDownloadHandler(log *slog.Logger, service downloadService) *DownloadHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DownloadHandler{
		service:  service,
		validate: validator.New(),
		logger:   log.With(slog.String("handler", "download")),
	}
}

func (h *DownloadHandler) Register(e *echo.Echo) {
	g := e.Group("/downloads", auth.RequireScope(auth.ScopeDownloads))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

// Create godoc
// @Summary Start a Spaces download
// @Tags downloads
// @Accept json
// @Produce json
// @Param request body CreateDownloadRequest true "Space URL"
// @Success 202 {object} download.Record
// @Failure 400 {object} ErrorResponse
// @Router /downloads [post]
func (h *DownloadHandler) Create(c echo.Context) error {
	var req CreateDownloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a valid url is required")
	}
	rec, err := h.service.Start(c.Request().Context(), req.URL)
	if err != nil {
		if errors.Is(err, download.ErrServiceDown) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("download started", slog.String("download_id", rec.ID))
	return c.JSON(http.StatusAccepted, rec)
}

// List godoc
// @Summary List downloads
// @Tags downloads
// @Produce json
// @Success 200 {array} download.Record
// @Router /downloads [get]
func (h *DownloadHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.List())
}

// Get godoc
// @Summary Get a download
// @Tags downloads
// @Produce json
// @Param id path string true "Download ID"
// @Success 200 {object} download.Record
// @Failure 404 {object} ErrorResponse
// @Router /downloads/{id} [get]
func (h *DownloadHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	rec, err := h.service.Get(id)
	if err != nil {
		if errors.Is(err, download.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}
