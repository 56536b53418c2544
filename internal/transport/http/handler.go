// Package http provides the HTTP transport for the analysis agent.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/dataset"
	"github.com/cartscope/cartscope/internal/domain"
)

// Asker is the conversation surface the transport exposes. The server owns a
// single session; there is no per-user session registry.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
	History() []domain.Message
}

// Handler handles HTTP requests.
type Handler struct {
	session Asker
	catalog *catalog.Catalog
	data    *dataset.Store
}

// NewHandler creates a new handler.
func NewHandler(session Asker, cat *catalog.Catalog, data *dataset.Store) *Handler {
	return &Handler{
		session: session,
		catalog: cat,
		data:    data,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/ask", h.Ask)
	e.GET("/v1/tools", h.ListTools)
	e.GET("/v1/messages", h.GetMessages)
	e.GET("/healthz", h.Health)
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the success body of POST /v1/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// Ask runs one question through the session.
func (h *Handler) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Question == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	answer, err := h.session.Ask(c.Request().Context(), req.Question)
	if err != nil {
		var upstream *domain.UpstreamError
		switch {
		case errors.Is(err, domain.ErrProtocolLimit):
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		case errors.As(err, &upstream):
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusOK, AskResponse{Answer: answer})
}

// ListTools returns the tool catalog as shown to the model.
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"tools": h.catalog.All(),
	})
}

// GetMessages returns the session's conversation history.
func (h *Handler) GetMessages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"messages": h.session.History(),
	})
}

// Health returns health status and the dataset summary.
func (h *Handler) Health(c echo.Context) error {
	summary, err := h.data.Summary(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"dataset": summary,
	})
}
