package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/dataset"
	"github.com/cartscope/cartscope/internal/domain"
)

type fakeAsker struct {
	answer  string
	err     error
	history []domain.Message
}

func (f *fakeAsker) Ask(ctx context.Context, question string) (string, error) {
	return f.answer, f.err
}

func (f *fakeAsker) History() []domain.Message {
	return f.history
}

func newTestServer(t *testing.T, asker *fakeAsker) *echo.Echo {
	t.Helper()

	store, err := dataset.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := echo.New()
	NewHandler(asker, catalog.New(), store).RegisterRoutes(e)
	return e
}

func doAsk(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAskOK(t *testing.T) {
	e := newTestServer(t, &fakeAsker{answer: "Bananas lead."})

	rec := doAsk(e, `{"question":"top product?"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bananas lead.", resp.Answer)
}

func TestAskEmptyQuestion(t *testing.T) {
	e := newTestServer(t, &fakeAsker{})

	rec := doAsk(e, `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskProtocolLimit(t *testing.T) {
	e := newTestServer(t, &fakeAsker{err: domain.ErrProtocolLimit})

	rec := doAsk(e, `{"question":"loop"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAskUpstreamError(t *testing.T) {
	e := newTestServer(t, &fakeAsker{err: &domain.UpstreamError{Status: 503, Message: "overloaded"}})

	rec := doAsk(e, `{"question":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "overloaded")
}

func TestListTools(t *testing.T) {
	e := newTestServer(t, &fakeAsker{})

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tools []domain.ToolDefinition `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tools, 7)
}

func TestGetMessages(t *testing.T) {
	asker := &fakeAsker{history: []domain.Message{
		domain.UserText("hi"),
		{Role: domain.RoleAssistant, Content: []domain.ContentBlock{domain.TextBlock("hello")}},
	}}
	e := newTestServer(t, asker)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 2)
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &fakeAsker{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), "order_products")
}
