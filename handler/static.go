package handler

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/intentflow/dag"
	apperrors "github.com/kbukum/intentflow/errors"
)

// Fixture is the canned outcome of one intent type or node.
type Fixture struct {
	Result any `yaml:"result" json:"result"`
	// FailTimes makes the first attempts of a node return Error.
	FailTimes int           `yaml:"fail_times" json:"fail_times"`
	Error     *FixtureError `yaml:"error" json:"error"`
	Delay     time.Duration `yaml:"delay" json:"delay"`
}

// FixtureError describes a scripted failure.
type FixtureError struct {
	Code      apperrors.ErrorCode `yaml:"code" json:"code"`
	Message   string              `yaml:"message" json:"message"`
	Retryable bool                `yaml:"retryable" json:"retryable"`
}

func (e *FixtureError) appError() *apperrors.AppError {
	code := e.Code
	if code == "" {
		code = apperrors.ErrCodeExternalService
	}
	msg := e.Message
	if msg == "" {
		msg = "scripted failure"
	}
	return apperrors.OperationFailed(code, msg, e.Retryable)
}

// Fixtures maps intent types, and optionally individual node ids, to
// outcomes. Node entries win over type entries.
type Fixtures struct {
	Types map[dag.IntentType]Fixture `yaml:"types" json:"types"`
	Nodes map[string]Fixture         `yaml:"nodes" json:"nodes"`
}

// LoadFixtures reads fixtures from a YAML or JSON file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: parsing fixtures: %w", path, err)
	}
	for t, fx := range f.Types {
		fx.Result = normalize(fx.Result)
		f.Types[t] = fx
	}
	for id, fx := range f.Nodes {
		fx.Result = normalize(fx.Result)
		f.Nodes[id] = fx
	}
	return &f, nil
}

// Static answers calls from fixtures. A call with no fixture echoes its
// parameters under "dry_run".
type Static struct {
	fixtures Fixtures
}

var _ dag.Handler = (*Static)(nil)

// NewStatic creates a static handler. f may be nil.
func NewStatic(f *Fixtures) *Static {
	s := &Static{}
	if f != nil {
		s.fixtures = *f
	}
	return s
}

// Register binds s to types, or to every built-in and fixture type when
// types is empty.
func (s *Static) Register(reg *dag.Registry, types ...dag.IntentType) {
	if len(types) == 0 {
		types = append(types, dag.KnownTypes...)
		for t := range s.fixtures.Types {
			if !reg.Has(t) {
				types = append(types, t)
			}
		}
	}
	for _, t := range types {
		reg.Register(t, s)
	}
}

// Execute implements dag.Handler.
func (s *Static) Execute(ctx context.Context, params map[string]any) (any, error) {
	call, _ := dag.CallFromContext(ctx)
	fx, ok := s.fixtures.Nodes[call.NodeID]
	if !ok {
		fx, ok = s.fixtures.Types[call.Type]
	}
	if !ok {
		return map[string]any{"dry_run": true, "type": string(call.Type), "parameters": params}, nil
	}

	if fx.Delay > 0 {
		t := time.NewTimer(fx.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fx.Error != nil && (fx.FailTimes <= 0 || call.Attempt <= fx.FailTimes) {
		return nil, fx.Error.appError()
	}
	return fx.Result, nil
}

// normalize converts YAML integers to float64 so fixture results have the
// same shape as JSON handler results.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
