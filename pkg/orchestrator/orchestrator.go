// Package orchestrator drives business cases through the stage-gated pipeline:
// it validates every transition against the lifecycle table, invokes Stage
// Agents, runs the financial join and persists each step as a conditional update.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/casegate/pkg/eventbus"
	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/lifecycle"
	"github.com/dukex/casegate/pkg/log"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/otelhelper"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/protocol"
)

// DefaultGenerationTimeout bounds a single Stage Agent invocation.
const DefaultGenerationTimeout = 2 * time.Minute

// AgentResolver returns the Stage Agent bound to a stage.
type AgentResolver interface {
	Agent(stage models.Stage) (protocol.StageAgent, error)
}

type Orchestrator struct {
	cases             persistence.CaseRepository
	agents            AgentResolver
	publisher         eventbus.EventPublisher
	tracer            trace.Tracer
	logger            *slog.Logger
	generationTimeout time.Duration
	now               func() time.Time
	locks             *caseLocks
}

type Option func(*Orchestrator)

// WithEventPublisher publishes lifecycle events after every committed transition.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func WithGenerationTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.generationTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(cases persistence.CaseRepository, agents AgentResolver, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = log.WithModule("orchestrator")
	} else {
		logger = logger.With("module", "orchestrator")
	}

	o := &Orchestrator{
		cases:             cases,
		agents:            agents,
		tracer:            otelhelper.NoopTracer("casegate"),
		logger:            logger,
		generationTimeout: DefaultGenerationTimeout,
		now:               time.Now,
		locks:             newCaseLocks(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Request addresses one operation at a case and, for stage operations, one stage lane.
type Request struct {
	CaseID string
	Stage  models.Stage
	// Actor is recorded on history entries; empty means the system.
	Actor string
	// ExpectedStatus, when set, must equal the current status of the addressed
	// lane (the case status for case level operations).
	ExpectedStatus models.CaseStatus
	// Reason is recorded by Reject and Abandon.
	Reason string
	// Content and Data carry a human revision for ReviseDraft.
	Content string
	Data    map[string]any
}

// Result is returned by every successful operation.
type Result struct {
	Case      *models.Case      `json:"case"`
	NewStatus models.CaseStatus `json:"new_status"`
	Message   string            `json:"message"`
}

func newResult(c *models.Case, format string, args ...any) *Result {
	return &Result{Case: c, NewStatus: c.Status, Message: fmt.Sprintf(format, args...)}
}

type operationFunc func(ctx context.Context, c *models.Case, req Request) (*Result, error)

// run loads the case under its lock and traces the operation.
func (o *Orchestrator) run(ctx context.Context, op string, req Request, fn operationFunc) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator."+op,
		otelhelper.CaseAttributes(req.CaseID, string(req.Stage))...)
	defer span.End()

	if req.Actor == "" {
		req.Actor = models.SystemActor
	}

	logger := o.logger.With("op", op, "case_id", req.CaseID)
	if req.Stage != "" {
		logger = logger.With("stage", req.Stage)
	}

	release := o.locks.lock(req.CaseID)
	defer release()

	c, err := o.load(ctx, op, req)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Failed to load case", "error", err)

		return nil, err
	}

	from := c.Status

	result, err := fn(log.WithContext(ctx, logger), c, req)
	if result != nil {
		otelhelper.SetTransition(span, string(from), string(result.NewStatus))
	}

	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Operation failed", "status", from, "error", err)

		return result, err
	}

	logger.InfoContext(ctx, "Operation completed", "from_status", from, "status", result.NewStatus)

	return result, nil
}

func (o *Orchestrator) load(ctx context.Context, op string, req Request) (*models.Case, error) {
	c, err := o.cases.GetByID(ctx, req.CaseID)
	if err != nil {
		return nil, &OperationError{
			Op:      op,
			CaseID:  req.CaseID,
			Stage:   req.Stage,
			Message: "failed to load case",
			Err:     wrap(classify(err), err),
		}
	}

	return c, nil
}

func (o *Orchestrator) stageSpec(op string, req Request) (lifecycle.StageSpec, error) {
	spec, err := lifecycle.Spec(req.Stage)
	if err != nil {
		return spec, &OperationError{Op: op, CaseID: req.CaseID, Stage: req.Stage, Message: err.Error(), Err: ErrUnknownStage}
	}

	return spec, nil
}

// laneStatus checks the addressed lane before an operation moves it to to.
func laneStatus(op string, c *models.Case, spec lifecycle.StageSpec, req Request, to models.CaseStatus,
	allowed ...models.CaseStatus,
) (models.CaseStatus, error) {
	lane := spec.Current(c)

	mismatch := func(format string, args ...any) error {
		return &OperationError{
			Op:      op,
			CaseID:  c.ID,
			Stage:   spec.Stage,
			From:    lane,
			To:      to,
			Message: fmt.Sprintf(format, args...),
			Err:     ErrStateMismatch,
		}
	}

	switch {
	case lifecycle.IsTerminal(c.Status):
		return lane, mismatch("case is %s", c.Status)
	case req.ExpectedStatus != "" && req.ExpectedStatus != lane:
		return lane, mismatch("expected %s but stage is %s", req.ExpectedStatus, displayStatus(lane))
	case !slices.Contains(allowed, lane):
		return lane, mismatch("stage is %s", displayStatus(lane))
	case lane != to && !lifecycle.CanTransition(lane, to):
		return lane, mismatch("transition not allowed")
	}

	return lane, nil
}

// commit applies update and converts store failures into operation errors.
func (o *Orchestrator) commit(ctx context.Context, op string, c *models.Case, stage models.Stage,
	from, to models.CaseStatus, update *models.CaseUpdate,
) (*models.Case, error) {
	updated, err := o.cases.Apply(ctx, c.ID, update)
	if err != nil {
		return nil, &OperationError{
			Op:      op,
			CaseID:  c.ID,
			Stage:   stage,
			From:    from,
			To:      to,
			Message: "failed to persist transition",
			Err:     wrap(classify(err), err),
		}
	}

	return updated, nil
}

func (o *Orchestrator) publish(ctx context.Context, caseID string, evts ...eventbus.Event) {
	if o.publisher == nil {
		return
	}

	for _, event := range evts {
		if err := o.publisher.Publish(ctx, caseID, event); err != nil {
			log.FromContext(ctx, o.logger).ErrorContext(ctx, "Failed to publish event",
				"event_type", event.GetType(), "error", err)
		}
	}
}

func statusChanged(caseID, actor string, stage models.Stage, from, to models.CaseStatus) events.CaseStatusChanged {
	return events.CaseStatusChanged{
		BaseEvent:  events.NewBaseEvent(events.CaseStatusChangedEvent, caseID, actor),
		Stage:      stage,
		FromStatus: from,
		ToStatus:   to,
	}
}
