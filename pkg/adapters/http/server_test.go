package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/internal/testutils"
	chathttp "github.com/aretw0/chatflow/pkg/adapters/http"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := flowstore.New(memory.NewStore())
	eng := chatflow.New(store)

	reg := prometheus.NewRegistry()
	handler, err := chathttp.NewHandler(eng, store, chathttp.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func activate(t *testing.T, srv *httptest.Server, flow *domain.Flow) {
	t.Helper()
	code, body := do(t, srv, http.MethodPost, "/flows", flow)
	require.Equal(t, http.StatusCreated, code, string(body))
	code, body = do(t, srv, http.MethodPost, "/flows/"+flow.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.True(t, decode[domain.Flow](t, body).IsActive)
}

func TestSpec(t *testing.T) {
	doc, err := chathttp.Spec()
	require.NoError(t, err)
	assert.Equal(t, "Chatflow API", doc.Info.Title)
}

func TestWidget_Conversation(t *testing.T) {
	srv := newServer(t)
	activate(t, srv, testutils.PlantShopFlow())

	code, body := do(t, srv, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, code, string(body))
	session := decode[chatflow.Session](t, body)
	assert.Equal(t, "menu", session.Cursor.CurrentNodeID)
	assert.Len(t, session.Payload.Options, 4)

	code, body = do(t, srv, http.MethodPost, "/sessions/advance", chathttp.AdvanceRequest{Token: session.Token, OptionID: "o-talk"})
	require.Equal(t, http.StatusOK, code, string(body))
	next := decode[chatflow.Session](t, body)
	assert.True(t, next.Ended())
	require.NotNil(t, next.Directive)
	assert.Equal(t, domain.DirectiveWhatsApp, next.Directive.Type)
	assert.Equal(t, "https://wa.me/911234567890?text=A+gardener+will+answer+on+WhatsApp.", next.Directive.Link)

	tests := []struct {
		name   string
		req    chathttp.AdvanceRequest
		status int
		code   string
	}{
		{"ended session", chathttp.AdvanceRequest{Token: next.Token, OptionID: "o-talk"}, http.StatusGone, "session_ended"},
		{"unknown option", chathttp.AdvanceRequest{Token: session.Token, OptionID: "o-nope"}, http.StatusBadRequest, "invalid_option"},
		{"forged token", chathttp.AdvanceRequest{Token: "bm9wZQ", OptionID: "o-talk"}, http.StatusBadRequest, "invalid_cursor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, http.MethodPost, "/sessions/advance", tt.req)
			assert.Equal(t, tt.status, code, string(body))
			assert.Equal(t, tt.code, decode[chathttp.ErrorResponse](t, body).Code)
		})
	}
}

func TestWidget_NoActiveFlow(t *testing.T) {
	srv := newServer(t)

	code, body := do(t, srv, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", decode[chathttp.ErrorResponse](t, body).Code)

	code, _ = do(t, srv, http.MethodGet, "/active-flow", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdmin_FlowLifecycle(t *testing.T) {
	srv := newServer(t)
	flow := testutils.PlantShopFlow()

	code, _ := do(t, srv, http.MethodPost, "/flows", flow)
	require.Equal(t, http.StatusCreated, code)

	code, body := do(t, srv, http.MethodPost, "/flows", flow)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_exists", decode[chathttp.ErrorResponse](t, body).Code)

	code, body = do(t, srv, http.MethodPatch, "/flows/plant-shop", map[string]any{"name": "Nursery"})
	require.Equal(t, http.StatusOK, code, string(body))
	updated := decode[domain.Flow](t, body)
	assert.Equal(t, "Nursery", updated.Name)
	assert.Equal(t, 2, updated.Version)

	code, body = do(t, srv, http.MethodGet, "/flows", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]domain.Flow](t, body), 1)

	code, body = do(t, srv, http.MethodGet, "/flows/plant-shop/graph", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(string(body), "graph TD"))

	code, _ = do(t, srv, http.MethodPost, "/flows/plant-shop/activate", nil)
	require.Equal(t, http.StatusOK, code)
	code, body = do(t, srv, http.MethodGet, "/active-flow", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "plant-shop", decode[domain.Flow](t, body).ID)

	code, _ = do(t, srv, http.MethodDelete, "/flows/plant-shop", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, srv, http.MethodGet, "/flows/plant-shop", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, srv, http.MethodGet, "/active-flow", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdmin_InvalidFlowCannotBeActivated(t *testing.T) {
	srv := newServer(t)
	broken := &domain.Flow{
		ID:   "broken",
		Name: "Broken",
		Nodes: []domain.Node{
			{ID: "a", Data: domain.NodeData{Text: "Shop", ActionType: domain.ActionURL}},
		},
	}

	code, _ := do(t, srv, http.MethodPut, "/flows/broken", broken)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, srv, http.MethodPost, "/flows/broken/validate", nil)
	require.Equal(t, http.StatusOK, code)
	report := decode[chathttp.ValidationReport](t, body)
	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Violations)
	assert.Equal(t, domain.KindMissingActionValue, report.Violations[0].Kind)

	code, body = do(t, srv, http.MethodPost, "/flows/broken/activate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	errResp := decode[chathttp.ErrorResponse](t, body)
	assert.Equal(t, "validation_failed", errResp.Code)
	assert.NotEmpty(t, errResp.Violations)
}

func TestRequestValidation(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"missing token", "/sessions/advance", map[string]any{"optionId": "o1"}},
		{"nodes not an array", "/flows", map[string]any{"name": "x", "nodes": "nope"}},
		{"edge without target", "/flows", map[string]any{"edges": []map[string]any{{"id": "e", "source": "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code, string(body))
			assert.Equal(t, "bad_request", decode[chathttp.ErrorResponse](t, body).Code)
		})
	}
}

func TestStatusFor_BrokenFlowIsConflict(t *testing.T) {
	ctx := context.Background()
	engine := runtime.NewEngine()

	tests := []struct {
		name   string
		mutate func(f *domain.Flow)
		option string
	}{
		{"menu without options", func(f *domain.Flow) { f.Nodes[1].Data = domain.NodeData{Text: "Care tips"} }, "o-care"},
		{"whatsapp without digits", func(f *domain.Flow) { f.Nodes[3].Data.ActionValue = "call us" }, "o-talk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := testutils.PlantShopFlow()
			tt.mutate(flow)
			start, err := engine.Start(ctx, flow)
			require.NoError(t, err)

			_, err = engine.Step(ctx, flow, start.Cursor, tt.option)
			require.Error(t, err)
			status, code := chathttp.StatusFor(err)
			assert.Equal(t, http.StatusConflict, status)
			assert.Equal(t, "broken_traversal", code)
		})
	}
}

func TestMetaEndpoints(t *testing.T) {
	srv := newServer(t)

	for _, path := range []string{"/health", "/info", "/metrics", "/openapi.yaml", "/swagger"} {
		code, _ := do(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, code, path)
	}
}

func TestSubscribeEvents(t *testing.T) {
	srv := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewReader(resp.Body)
	readUntil := func(want string) {
		t.Helper()
		for {
			line, err := lines.ReadString('\n')
			require.NoError(t, err, "waiting for %q", want)
			if strings.Contains(line, want) {
				return
			}
		}
	}

	readUntil("data: connected")
	activate(t, srv, testutils.WhatsAppFlow())
	readUntil("event: flow_saved")
	readUntil("event: flow_activated")
}
