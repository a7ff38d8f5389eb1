// Package runtime drives an agent: it asks the model for code, runs the
// code through an Executor, and records every step on a tape. Executed
// code may spawn sub-agents, which run the same loop one level deeper.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kehao95/rlmtrace/internal/config"
	"github.com/kehao95/rlmtrace/internal/llm"
	"github.com/kehao95/rlmtrace/internal/llm/protocol"
	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/usage"
)

var (
	// ErrNoCode ends a run whose model answer carried no code block.
	ErrNoCode = errors.New("model returned no code")
	// ErrStepsExhausted ends a run that hit MaxSteps without a final result.
	ErrStepsExhausted = errors.New("max steps reached without a final result")
)

// Generator produces the code for the next step. *llm.Client implements it.
type Generator interface {
	GenerateCode(ctx context.Context, messages []protocol.Message, model string, leaf bool, opts llm.RetryOptions) (llm.CodeResult, error)
}

// Execution is what running one code block produced. Done marks the step
// that returned the run's final value.
type Execution struct {
	Output   string
	HasError bool
	Done     bool
	Final    any
}

// Executor runs generated code. The sandbox lives behind it; env is the
// handle the code uses to start sub-agents.
type Executor interface {
	Execute(ctx context.Context, code string, env *Env) (Execution, error)
}

// Result describes a finished run.
type Result struct {
	RunID string
	Final any
	Steps int
	// Usage covers this run's own model calls, not its sub-agents'.
	Usage usage.Usage
}

// Agent runs queries against a Generator and an Executor. One Agent serves
// a whole run tree: sub-agents share its semaphore and accumulator.
type Agent struct {
	cfg   *config.Config
	gen   Generator
	exec  Executor
	acc   *usage.Accumulator
	sem   *Semaphore
	log   *slog.Logger
	retry llm.RetryOptions
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger routes operational logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.log = l }
}

// WithSemaphore shares sem instead of a private one sized MaxConcurrent.
func WithSemaphore(sem *Semaphore) Option {
	return func(a *Agent) { a.sem = sem }
}

// WithAccumulator tracks usage into acc.
func WithAccumulator(acc *usage.Accumulator) Option {
	return func(a *Agent) { a.acc = acc }
}

// New returns an Agent configured by cfg.
func New(cfg *config.Config, gen Generator, exec Executor, opts ...Option) *Agent {
	a := &Agent{
		cfg:   cfg,
		gen:   gen,
		exec:  exec,
		acc:   usage.NewAccumulator(),
		log:   slog.New(slog.DiscardHandler),
		retry: llm.RetryOptionsFrom(cfg),
	}
	for _, o := range opts {
		o(a)
	}
	if a.sem == nil {
		a.sem = NewSemaphore(cfg.MaxConcurrent, a.log)
	}
	return a
}

// Usage returns the usage of every model call made so far by any run of
// this agent.
func (a *Agent) Usage() usage.Usage {
	return a.acc.Snapshot()
}

// Run executes query as the run rec describes. It returns once the run
// has produced a final result or failed; in both cases the tape ends with
// a final_result event.
func (a *Agent) Run(ctx context.Context, query string, rec *tape.Recorder) (Result, error) {
	if err := a.cfg.CheckDepth(rec.Depth()); err != nil {
		return Result{RunID: rec.RunID()}, err
	}
	return a.run(ctx, query, rec)
}

func (a *Agent) run(ctx context.Context, query string, rec *tape.Recorder) (Result, error) {
	res := Result{RunID: rec.RunID()}
	log := a.log.With("run_id", rec.RunID(), "depth", rec.Depth())
	// A run that cannot spawn gets the leaf instructions.
	leaf := rec.Depth()+1 >= a.cfg.MaxDepth

	rec.RunStart(query)
	log.Debug("run started", "leaf", leaf)

	messages := []protocol.Message{{Role: protocol.RoleUser, Content: query}}
	for step := 1; step <= a.cfg.MaxSteps; step++ {
		if err := a.sem.Acquire(ctx); err != nil {
			return a.fail(rec, res, err)
		}
		gen, err := a.gen.GenerateCode(ctx, messages, a.cfg.ModelID, leaf, a.retry)
		a.sem.Release()
		if err != nil {
			return a.fail(rec, res, fmt.Errorf("step %d: %w", step, err))
		}

		a.acc.Track(gen.Usage)
		res.Usage = res.Usage.Add(gen.Usage)
		res.Steps = step
		rec.CodeGenerated(step, gen.Code, gen.Reasoning, gen.Usage)

		if !gen.Success {
			return a.fail(rec, res, fmt.Errorf("step %d: %w", step, ErrNoCode))
		}

		out, err := a.exec.Execute(ctx, gen.Code, &Env{agent: a, rec: rec, step: step})
		if err != nil {
			if ctx.Err() != nil {
				rec.ExecutionResult(step, err.Error(), true)
				return a.fail(rec, res, ctx.Err())
			}
			out.Output = joinOutput(out.Output, err.Error())
			out.HasError = true
		}
		rec.ExecutionResult(step, out.Output, out.HasError)
		log.Debug("step executed", "step", step, "has_error", out.HasError, "done", out.Done)

		if out.Done {
			rec.FinalResult(out.Final)
			res.Final = out.Final
			return res, nil
		}

		messages = append(messages,
			protocol.Message{Role: protocol.RoleAssistant, Content: gen.Content},
			protocol.Message{Role: protocol.RoleUser, Content: "Output:\n" + out.Output},
		)
	}
	return a.fail(rec, res, ErrStepsExhausted)
}

func (a *Agent) fail(rec *tape.Recorder, res Result, err error) (Result, error) {
	a.log.Warn("run failed", "run_id", rec.RunID(), "depth", rec.Depth(), "error", err)
	rec.FinalResult(map[string]string{"error": err.Error()})
	return res, err
}

func joinOutput(out, errText string) string {
	if out == "" {
		return errText
	}
	return out + "\n" + errText
}

// ---------------------------------------------------------------------------
// Env
// ---------------------------------------------------------------------------

// Env is the view of the running step that executed code sees.
type Env struct {
	agent *Agent
	rec   *tape.Recorder
	step  int
}

func (e *Env) RunID() string { return e.rec.RunID() }
func (e *Env) Depth() int    { return e.rec.Depth() }
func (e *Env) Step() int     { return e.step }

// Spawn runs query as a sub-agent one level deeper and waits for it. It
// fails with config.ErrDepthExceeded when the sub-agent would nest past
// MaxDepth.
func (e *Env) Spawn(ctx context.Context, query string) (Result, error) {
	if err := e.agent.cfg.CheckDepth(e.rec.Depth() + 1); err != nil {
		return Result{}, err
	}
	return e.agent.run(ctx, query, e.rec.Child())
}

// SpawnAll runs one sub-agent per query concurrently. Results are in query
// order; the error joins every sub-agent failure.
func (e *Env) SpawnAll(ctx context.Context, queries []string) ([]Result, error) {
	if err := e.agent.cfg.CheckDepth(e.rec.Depth() + 1); err != nil {
		return nil, err
	}
	results := make([]Result, len(queries))
	errs := make([]error, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		child := e.rec.Child()
		wg.Go(func() {
			results[i], errs[i] = e.agent.run(ctx, q, child)
		})
	}
	wg.Wait()
	return results, errors.Join(errs...)
}
