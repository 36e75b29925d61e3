// Package lifecycle drives a built topology through the emulation engine,
// the controller attach step, the interactive session and teardown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"srv6lab/internal/controller"
	"srv6lab/internal/emulation"
	"srv6lab/internal/metrics"
	"srv6lab/internal/session"
	"srv6lab/internal/topology"
)

type State int

const (
	Built State = iota
	Started
	Attached
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Started:
		return "started"
	case Attached:
		return "attached"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// EngineInstantiationError is fatal: the run cannot continue and nothing is
// rolled back.
type EngineInstantiationError struct {
	// Node names the failing node, or the failing link as "a:1 <--> b:1".
	Node string
	Err  error
}

func (e *EngineInstantiationError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("engine instantiation failed: %v", e.Err)
	}
	return fmt.Sprintf("engine instantiation failed at %s: %v", e.Node, e.Err)
}

func (e *EngineInstantiationError) Unwrap() error {
	return e.Err
}

type Options struct {
	Engine   emulation.Engine
	Attacher controller.Attacher
	Session  session.Session
	Endpoint controller.Endpoint
	// Metrics is optional.
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Orchestrator is single use; a new run needs a new graph and orchestrator.
type Orchestrator struct {
	graph    *topology.Graph
	engine   emulation.Engine
	attacher controller.Attacher
	session  session.Session
	endpoint controller.Endpoint
	metrics  *metrics.Registry
	logger   *slog.Logger

	state   State
	runtime *emulation.Runtime
}

func New(g *topology.Graph, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		graph:    g,
		engine:   opts.Engine,
		attacher: opts.Attacher,
		session:  opts.Session,
		endpoint: opts.Endpoint,
		metrics:  opts.Metrics,
		logger:   logger,
		state:    Built,
	}
	if o.metrics != nil {
		o.metrics.SetTopology(len(g.Switches()), len(g.Hosts()), g.NumLinks())
		o.metrics.SetState(Built.String())
	}
	return o
}

func (o *Orchestrator) State() State {
	return o.state
}

// Runtime returns the handles created so far, or nil before Start.
func (o *Orchestrator) Runtime() *emulation.Runtime {
	return o.runtime
}

func (o *Orchestrator) expect(op string, want State) error {
	if o.state != want {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, o.state)
	}
	return nil
}

func (o *Orchestrator) enter(s State) {
	o.logger.Debug("lifecycle transition", "from", o.state, "to", s)
	o.state = s
	if o.metrics != nil {
		o.metrics.SetState(s.String())
	}
}

func (o *Orchestrator) record(phase string, began time.Time, err error) {
	if o.metrics != nil {
		o.metrics.RecordPhase(phase, time.Since(began), err)
	}
}

func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.expect("start", Built); err != nil {
		return err
	}

	o.logger.Info("starting network", "nodes", o.graph.NumNodes(), "links", o.graph.NumLinks())
	began := time.Now()
	rt, err := o.engine.Instantiate(ctx, o.graph, emulation.InstantiateOptions{ControllerDisabled: true})
	o.runtime = rt
	o.record("start", began, err)
	if err != nil {
		ie := &EngineInstantiationError{Err: err}
		var engineErr *emulation.InstantiationError
		if errors.As(err, &engineErr) {
			ie.Node = engineErr.Node
			if ie.Node == "" {
				ie.Node = engineErr.Link
			}
		}
		return ie
	}

	o.updateHandles()
	o.enter(Started)
	return nil
}

// Attach registers the controller endpoint with every switch that exposes
// a control plane. Hosts are left alone.
func (o *Orchestrator) Attach(ctx context.Context) error {
	if err := o.expect("attach", Started); err != nil {
		return err
	}

	o.logger.Info("attaching controller", "controller", o.endpoint.Name, "address", o.endpoint.Address)
	began := time.Now()
	err := o.attacher.Attach(ctx, o.graph, o.runtime, o.endpoint)
	o.record("attach", began, err)
	if err != nil {
		return fmt.Errorf("attach controller %s: %w", o.endpoint.Name, err)
	}

	o.enter(Attached)
	return nil
}

// Run blocks in the interactive session until the operator leaves it.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.expect("run", Attached); err != nil {
		return err
	}

	o.enter(Running)
	began := time.Now()
	err := o.session.Run(ctx, o.runtime)
	o.record("run", began, err)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// Stop tears down every runtime handle, links first, each group in reverse
// creation order. A failing teardown does not stop the rest; every failure
// is returned.
func (o *Orchestrator) Stop(ctx context.Context) []error {
	if o.state == Stopped {
		return []error{fmt.Errorf("%w: stop in state %s", ErrInvalidTransition, o.state)}
	}

	// teardown proceeds even when the caller's context was cancelled
	ctx = context.WithoutCancel(ctx)
	began := time.Now()

	var errs []error
	if o.runtime != nil {
		o.logger.Info("stopping network", "handles", len(o.runtime.Handles))
		for _, h := range emulation.TeardownOrder(o.runtime.Handles) {
			if err := o.engine.Teardown(ctx, h); err != nil {
				o.logger.Warn("teardown failed", "handle", h.String(), "error", err)
				errs = append(errs, err)
				if o.metrics != nil {
					o.metrics.TeardownErrors.Inc()
				}
			}
		}
	}

	o.record("stop", began, errors.Join(errs...))
	o.enter(Stopped)
	if o.metrics != nil {
		o.metrics.SetHandles(0, 0)
	}
	return errs
}

// Execute runs start, attach, run and stop in order. A start failure is
// returned as is and nothing is stopped; later failures still stop the
// network and are joined with any teardown errors.
func (o *Orchestrator) Execute(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}

	var errs []error
	if err := o.Attach(ctx); err != nil {
		errs = append(errs, err)
	} else if err := o.Run(ctx); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, o.Stop(ctx)...)
	return errors.Join(errs...)
}

func (o *Orchestrator) updateHandles() {
	if o.metrics == nil || o.runtime == nil {
		return
	}
	o.metrics.SetHandles(len(o.runtime.Nodes()), len(o.runtime.Links()))
}
