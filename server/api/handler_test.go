package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/kbukum/intentflow/auth/jwt"
	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/dag/testutil"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/progress"
	"github.com/kbukum/intentflow/redis"
	"github.com/kbukum/intentflow/server"
	"github.com/kbukum/intentflow/server/api"
	"github.com/kbukum/intentflow/server/middleware"
	"github.com/kbukum/intentflow/sse"
)

const bullishGraph = `{"nodes":[
	{"id":"sentiment","type":"sentiment-check","parameters":{"token":"ETH"}},
	{"id":"trade","type":"token-trade","depends_on":["sentiment"],
	 "condition":{"expr":"sentiment.label == \"bullish\""},"parameters":{"amount":"{{sentiment.size}}"}},
	{"id":"alert","type":"price-alert","depends_on":["trade"]}
]}`

func TestSubmitRunsAndStoresResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Enabled: true, Addr: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis.New: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	trade := testutil.NewMockHandler("filled")
	h := newHarness(t, harnessOptions{
		trade: trade,
		api:   []api.Option{api.WithResultStore(api.NewRedisResultStore(client, ""), time.Minute)},
	})

	rr := h.do(t, http.MethodPost, "/v1/executions", `{"graph":`+bullishGraph+`,"deadline_ms":5000}`, "exec-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if got := rr.Header().Get(middleware.HeaderExecutionID); got != "exec-1" {
		t.Errorf("execution id header = %q", got)
	}
	var resp dag.Response
	decode(t, rr, &resp)
	if resp.ExecutionID != "exec-1" || resp.OverallStatus != dag.OverallCompleted {
		t.Fatalf("response = %+v", resp)
	}
	if got := trade.Params(0)["amount"]; got != 3 {
		t.Errorf("trade amount = %v (%T), want 3", got, got)
	}

	rr = h.do(t, http.MethodGet, "/v1/executions/exec-1", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rr.Code, rr.Body)
	}
	var stored dag.Response
	decode(t, rr, &stored)
	if stored.OverallStatus != dag.OverallCompleted || len(stored.Nodes) != 3 {
		t.Errorf("stored = %+v", stored)
	}
	if n, ok := stored.Node("trade"); !ok || n.Status != dag.StatusSucceeded || n.Result != "filled" {
		t.Errorf("stored trade = %+v", n)
	}

	if rr := h.do(t, http.MethodGet, "/v1/executions/unknown", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", rr.Code)
	}
}

func TestSubmitGeneratesExecutionID(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	rr := h.do(t, http.MethodPost, "/v1/executions", `{"graph":`+bullishGraph+`}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var resp dag.Response
	decode(t, rr, &resp)
	if resp.ExecutionID == "" || rr.Header().Get(middleware.HeaderExecutionID) != resp.ExecutionID {
		t.Errorf("id %q, header %q", resp.ExecutionID, rr.Header().Get(middleware.HeaderExecutionID))
	}
}

func TestSubmitRejects(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	tests := []struct {
		name   string
		body   string
		id     string
		status int
		code   apperrors.ErrorCode
	}{
		{"malformed", `{"graph":`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unknown field", `{"graph":` + bullishGraph + `,"priority":1}`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"missing graph", `{"deadline_ms":10}`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unknown node field", `{"graph":{"nodes":[{"id":"a","type":"transfer","after":["b"]}]}}`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"negative deadline", `{"graph":` + bullishGraph + `,"deadline_ms":-1}`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"deadline too long", `{"graph":` + bullishGraph + `,"deadline_ms":99999999}`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"deadline overflowing", `{"graph":` + bullishGraph + `,"deadline_ms":9223372036854775807}`, "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"bad execution id", `{"graph":` + bullishGraph + `}`, "exec:*", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"cycle", `{"graph":{"nodes":[
			{"id":"a","type":"transfer","depends_on":["b"]},
			{"id":"b","type":"transfer","depends_on":["a"]}]}}`, "", http.StatusUnprocessableEntity, apperrors.ErrCodeCycleDetected},
		{"dangling", `{"graph":{"nodes":[{"id":"a","type":"transfer","depends_on":["ghost"]}]}}`, "", http.StatusUnprocessableEntity, apperrors.ErrCodeDanglingReference},
		{"empty", `{"graph":{"nodes":[]}}`, "", http.StatusUnprocessableEntity, apperrors.ErrCodeInvalidGraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, "/v1/executions", tt.body, tt.id)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
			if code := errorCode(t, rr); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestValidateReturnsOrder(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	rr := h.do(t, http.MethodPost, "/v1/executions/validate", `{"graph":`+bullishGraph+`}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var body struct {
		Data api.ValidateResponse `json:"data"`
	}
	decode(t, rr, &body)
	if !body.Data.Valid || !slices.Equal(body.Data.Order, []string{"sentiment", "trade", "alert"}) {
		t.Errorf("validate = %+v", body.Data)
	}
}

func TestCancelRunningExecution(t *testing.T) {
	trade := testutil.NewMockHandler(nil).Blocking()
	h := newHarness(t, harnessOptions{trade: trade})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- h.do(t, http.MethodPost, "/v1/executions", `{"graph":`+bullishGraph+`}`, "exec-cancel")
	}()
	select {
	case <-trade.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("trade never started")
	}

	rr := h.do(t, http.MethodGet, "/v1/executions", "", "")
	var running struct {
		Data api.RunningResponse `json:"data"`
	}
	decode(t, rr, &running)
	if !slices.Contains(running.Data.Executions, "exec-cancel") {
		t.Errorf("running = %v", running.Data.Executions)
	}

	if rr := h.do(t, http.MethodDelete, "/v1/executions/exec-cancel", "", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d: %s", rr.Code, rr.Body)
	}

	var submitted *httptest.ResponseRecorder
	select {
	case submitted = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after cancel")
	}
	var resp dag.Response
	decode(t, submitted, &resp)
	if !resp.Canceled {
		t.Error("response not marked canceled")
	}
	if n, _ := resp.Node("alert"); n.Status != dag.StatusSkipped || n.Reason != dag.ReasonCanceled {
		t.Errorf("alert = %+v", n)
	}

	if rr := h.do(t, http.MethodDelete, "/v1/executions/exec-cancel", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second cancel status = %d", rr.Code)
	}
}

func TestIntentTypes(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	rr := h.do(t, http.MethodGet, "/v1/intent-types", "", "")
	var body struct {
		Data api.IntentTypesResponse `json:"data"`
	}
	decode(t, rr, &body)
	for _, want := range []dag.IntentType{dag.TypeSentimentCheck, dag.TypeTokenTrade, dag.TypePriceAlert} {
		if !slices.Contains(body.Data.Types, want) {
			t.Errorf("types %v missing %s", body.Data.Types, want)
		}
	}
}

func TestGetWithoutStore(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	if rr := h.do(t, http.MethodGet, "/v1/executions/x", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d", rr.Code)
	}
	if rr := h.do(t, http.MethodGet, "/v1/executions/x/events", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("events status = %d", rr.Code)
	}
}

func TestAuthScopes(t *testing.T) {
	v, err := jwt.NewValidator(jwt.Config{Secret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, harnessOptions{validator: v})
	writer, _ := v.Issue("alice", jwt.ScopeExecute, jwt.ScopeRead)
	reader, _ := v.Issue("bob", jwt.ScopeRead)

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		body   string
		status int
	}{
		{"no token", "", http.MethodGet, "/v1/intent-types", "", http.StatusUnauthorized},
		{"reader lists types", reader, http.MethodGet, "/v1/intent-types", "", http.StatusOK},
		{"reader cannot submit", reader, http.MethodPost, "/v1/executions", `{"graph":` + bullishGraph + `}`, http.StatusForbidden},
		{"writer submits", writer, http.MethodPost, "/v1/executions", `{"graph":` + bullishGraph + `}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			h.handler.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
		})
	}
}

func TestEventStream(t *testing.T) {
	hub := sse.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := newHarness(t, harnessOptions{
		engine: []dag.Option{dag.WithPublisher(progress.NewSSEPublisher(hub))},
		api:    []api.Option{api.WithHub(hub)},
	})
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/executions/exec-sse/events", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) []string {
		var seen []string
		for lines.Scan() {
			seen = append(seen, lines.Text())
			if strings.HasPrefix(lines.Text(), prefix) {
				return seen
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, seen)
		return nil
	}
	waitFor("event: " + sse.EventTypeConnected)
	waitFor("data: ")

	if rr := h.do(t, http.MethodPost, "/v1/executions", `{"graph":`+bullishGraph+`}`, "exec-sse"); rr.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rr.Code, rr.Body)
	}

	var events []dag.Event
	for lines.Scan() {
		line := lines.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev dag.Event
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				t.Fatalf("decode %q: %v", data, err)
			}
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	first, last := events[0], events[len(events)-1]
	if first.Kind != dag.EventExecution || first.Status != "started" {
		t.Errorf("first event = %+v", first)
	}
	if last.Kind != dag.EventExecution || last.Status != string(dag.OverallCompleted) {
		t.Errorf("last event = %+v", last)
	}
	for _, ev := range events {
		if ev.ExecutionID != "exec-sse" {
			t.Errorf("event for %q leaked into stream", ev.ExecutionID)
		}
	}
}

// --- test helpers ---

type harnessOptions struct {
	trade     *testutil.MockHandler
	validator *jwt.Validator
	engine    []dag.Option
	api       []api.Option
}

type harness struct {
	engine  *dag.Engine
	handler http.Handler
}

func newHarness(t *testing.T, o harnessOptions) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := dag.NewRegistry()
	reg.Register(dag.TypeSentimentCheck, testutil.NewMockHandler(map[string]any{"label": "bullish", "size": 3}))
	if o.trade == nil {
		o.trade = testutil.NewMockHandler("filled")
	}
	reg.Register(dag.TypeTokenTrade, o.trade)
	reg.Register(dag.TypePriceAlert, testutil.NewMockHandler("armed"))
	reg.Register(dag.TypeTransfer, testutil.NewMockHandler("sent"))

	e, err := dag.NewEngine(dag.Config{PoolSize: 8}, reg, o.engine...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})

	var cfg server.Config
	cfg.ApplyDefaults()
	s := server.New(cfg, nil)
	s.ApplyMiddleware(nil)
	api.New(e, o.api...).Register(s.APIGroup("/v1", o.validator))
	return &harness{engine: e, handler: s.Handler()}
}

func (h *harness) do(t *testing.T, method, path, body, executionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if executionID != "" {
		req.Header.Set(middleware.HeaderExecutionID, executionID)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body, err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var body apperrors.ErrorResponse
	decode(t, rr, &body)
	return body.Error.Code
}
