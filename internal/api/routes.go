package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sorivoice/sori/internal/client"
)

// InitRoutes initializes the local control surface
func InitRoutes(e *echo.Echo, cl *client.Client, registry *prometheus.Registry, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "sori-client",
		})
	})

	e.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")

	v1.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, cl.Status())
	})

	// Recording control
	v1.POST("/recording/start", func(c echo.Context) error {
		if err := cl.StartRecording(); err != nil {
			logger.Error("Recording start failed", zap.Error(err))
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "recording_start_failed",
				Message: err.Error(),
			})
		}
		return c.JSON(http.StatusOK, cl.Status())
	})

	v1.POST("/recording/stop", func(c echo.Context) error {
		cl.StopRecording()
		return c.JSON(http.StatusOK, cl.Status())
	})

	// Auto chat control
	v1.POST("/autochat/start", func(c echo.Context) error {
		var req AutoChatRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request format",
			})
		}
		if err := cl.StartAutoChat(req.Theme, req.Interval); err != nil {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "auto_chat_start_failed",
				Message: err.Error(),
			})
		}
		return c.JSON(http.StatusAccepted, cl.Status())
	})

	v1.POST("/autochat/stop", func(c echo.Context) error {
		if err := cl.StopAutoChat(); err != nil {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "auto_chat_stop_failed",
				Message: err.Error(),
			})
		}
		return c.JSON(http.StatusAccepted, cl.Status())
	})

	v1.PUT("/autochat/settings", func(c echo.Context) error {
		var req AutoChatRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request format",
			})
		}
		theme, interval := cl.UpdateAutoChatSettings(req.Theme, req.Interval)
		return c.JSON(http.StatusOK, AutoChatSettingsResponse{
			Theme:    theme,
			Interval: interval,
		})
	})

	// Conversation history
	v1.GET("/chat", func(c echo.Context) error {
		limit := 0
		if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be an integer",
			})
		}
		history, err := cl.History(c.Request().Context(), limit)
		if err != nil {
			logger.Error("History read failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "history_read_failed",
				Message: err.Error(),
			})
		}
		return c.JSON(http.StatusOK, history)
	})

	v1.DELETE("/chat", func(c echo.Context) error {
		if err := cl.ClearHistory(c.Request().Context()); err != nil {
			logger.Error("History clear failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "history_clear_failed",
				Message: err.Error(),
			})
		}
		return c.NoContent(http.StatusNoContent)
	})
}
