package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/intentflow/auth/jwt"
	"github.com/kbukum/intentflow/dag"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/logger"
	"github.com/kbukum/intentflow/progress"
	"github.com/kbukum/intentflow/server"
	"github.com/kbukum/intentflow/server/middleware"
	"github.com/kbukum/intentflow/sse"
	"github.com/kbukum/intentflow/validation"
)

// Handler serves the execution API.
type Handler struct {
	engine      *dag.Engine
	hub         *sse.Hub
	store       ResultStore
	resultTTL   time.Duration
	maxDeadline time.Duration
	log         *logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHub enables the progress stream endpoint.
func WithHub(h *sse.Hub) Option {
	return func(a *Handler) { a.hub = h }
}

// WithResultStore keeps finished responses for ttl.
func WithResultStore(s ResultStore, ttl time.Duration) Option {
	return func(a *Handler) {
		a.store = s
		a.resultTTL = ttl
	}
}

// WithMaxDeadline caps the deadline a caller may request.
func WithMaxDeadline(d time.Duration) Option {
	return func(a *Handler) { a.maxDeadline = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Handler) { a.log = l }
}

// New creates the API handler for engine.
func New(engine *dag.Engine, opts ...Option) *Handler {
	h := &Handler{engine: engine, resultTTL: time.Hour, log: logger.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	if h.maxDeadline <= 0 {
		h.maxDeadline = 10 * engine.Config().Deadline
	}
	h.log = h.log.WithComponent("api")
	return h
}

// Register mounts the routes on r, usually the /v1 group.
func (h *Handler) Register(r gin.IRouter) {
	write := middleware.RequireScope(jwt.ScopeExecute)
	read := middleware.RequireScope(jwt.ScopeRead)

	r.POST("/executions", write, h.submit)
	r.POST("/executions/validate", write, h.validate)
	r.GET("/executions", read, h.running)
	r.GET("/executions/:id", read, h.get)
	r.GET("/executions/:id/events", read, h.events)
	r.DELETE("/executions/:id", write, h.cancel)
	r.GET("/intent-types", read, h.intentTypes)
}

func (h *Handler) submit(c *gin.Context) {
	req, draft, err := h.decode(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	id := c.GetHeader(middleware.HeaderExecutionID)
	if id == "" {
		id = uuid.NewString()
	} else if err := validation.New().ExecutionID(middleware.HeaderExecutionID, id).Validate(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Header(middleware.HeaderExecutionID, id)

	opts := []dag.RunOption{dag.WithExecutionID(id)}
	if claims, ok := jwt.ClaimsFromContext(c.Request.Context()); ok {
		opts = append(opts, dag.WithUserID(claims.Subject))
	}
	if req.DeadlineMS > 0 {
		opts = append(opts, dag.WithDeadline(time.Duration(req.DeadlineMS)*time.Millisecond))
	}
	if req.Concurrency > 0 {
		opts = append(opts, dag.WithConcurrency(req.Concurrency))
	}

	ctx := logger.ContextWithExecutionID(c.Request.Context(), id)
	resp, err := h.engine.Run(ctx, draft, opts...)
	if err != nil {
		server.RespondWithError(c, runError(err))
		return
	}
	h.save(ctx, resp)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) validate(c *gin.Context) {
	_, draft, err := h.decode(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	g, err := h.engine.Validate(draft)
	if err != nil {
		server.RespondWithError(c, runError(err))
		return
	}
	server.RespondOK(c, ValidateResponse{Valid: true, Nodes: g.Len(), Order: g.Order()})
}

func (h *Handler) running(c *gin.Context) {
	server.RespondOK(c, RunningResponse{Executions: h.engine.Running()})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if h.store == nil {
		server.RespondWithError(c, apperrors.NotFound("execution", id))
		return
	}
	resp, err := h.store.Load(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("result-store").WithCause(err))
		return
	}
	if resp == nil {
		server.RespondWithError(c, apperrors.NotFound("execution", id))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) events(c *gin.Context) {
	id := c.Param("id")
	if h.hub == nil {
		server.RespondWithError(c, apperrors.NotFound("progress stream", id))
		return
	}
	if !validation.IsExecutionID(id) {
		server.RespondWithError(c, apperrors.InvalidInput("id", "invalid execution id"))
		return
	}
	var opts []sse.ClientOption
	if claims, ok := jwt.ClaimsFromContext(c.Request.Context()); ok {
		opts = append(opts, sse.WithUserID(claims.Subject))
	}
	opts = append(opts, sse.WithMetadata("execution_id", id))
	sse.ServeSSE(h.hub, c.Writer, c.Request, progress.ClientID(id, uuid.NewString()), opts...)
}

func (h *Handler) cancel(c *gin.Context) {
	id := c.Param("id")
	if !h.engine.Cancel(id) {
		server.RespondWithError(c, apperrors.NotFound("running execution", id))
		return
	}
	h.log.WithContext(c.Request.Context()).Info("execution cancel requested", logger.Fields(logger.FieldExecutionID, id))
	server.RespondAccepted(c, CancelResponse{ExecutionID: id, Canceled: true})
}

func (h *Handler) intentTypes(c *gin.Context) {
	server.RespondOK(c, IntentTypesResponse{Types: h.engine.Registry().Types()})
}

// decode reads a SubmitRequest and its draft. Unknown fields are rejected
// at both levels.
func (h *Handler) decode(c *gin.Context) (*SubmitRequest, *dag.Draft, error) {
	var req SubmitRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apperrors.New(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		}
		return nil, nil, apperrors.InvalidInput("body", err.Error())
	}
	if err := validation.Validate(&req); err != nil {
		return nil, nil, err
	}
	if err := validation.New().MaxDuration("deadline_ms", req.DeadlineMS, h.maxDeadline).Validate(); err != nil {
		return nil, nil, err
	}
	draft, err := dag.LoadDraft(bytes.TrimSpace(req.Graph), dag.FormatJSON)
	if err != nil {
		return nil, nil, apperrors.InvalidInput("graph", err.Error())
	}
	return &req, draft, nil
}

func (h *Handler) save(ctx context.Context, resp *dag.Response) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.store.Save(ctx, resp.ExecutionID, resp, h.resultTTL); err != nil {
		h.log.WithContext(ctx).Warn("storing response failed", logger.MergeWithError(nil, err))
	}
}

// runError maps engine errors onto API errors.
func runError(err error) error {
	var gve *dag.GraphValidationError
	switch {
	case errors.As(err, &gve):
		return gve.AppError()
	case errors.Is(err, dag.ErrExecutionRunning):
		return apperrors.Conflict(err.Error())
	case errors.Is(err, dag.ErrEngineClosed):
		return apperrors.ServiceUnavailable("engine")
	default:
		return err
	}
}
