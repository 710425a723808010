package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/rt"
	"github.com/roach88/incoq/internal/symtab"
)

// Declarations names the global collections of a program. Counted
// relations are a subset of Relations.
type Declarations struct {
	Relations []string
	Counted   []string
	Maps      []string
}

// DeclarationsFromProgram declares the relations and maps a program
// lists.
func DeclarationsFromProgram(p *incast.Program) Declarations {
	return Declarations{Relations: p.Relations, Counted: p.Counted, Maps: p.Maps}
}

// DeclarationsFromTable declares every relation and map of a symbol
// table, including the result relations and aggregate maps added by
// incrementalization.
func DeclarationsFromTable(tab *symtab.Table) Declarations {
	var d Declarations
	for _, r := range tab.Relations() {
		d.Relations = append(d.Relations, r.Name)
		if r.Counted {
			d.Counted = append(d.Counted, r.Name)
		}
	}
	for _, m := range tab.Maps() {
		d.Maps = append(d.Maps, m.Name)
	}
	return d
}

// Event records one update of a global collection. Elem is the
// formatted element or key.
type Event struct {
	Seq    int64  `json:"seq"`
	Op     string `json:"op"`
	Target string `json:"target"`
	Elem   string `json:"elem,omitempty"`
}

// Engine interprets a module on runtime collections.
//
// Execution is single-threaded and deterministic: statements run in
// program order and maintenance procedures run synchronously at the
// point of the update that triggers them. An Engine is not safe for
// concurrent use.
type Engine struct {
	module  *incast.Module
	funcs   map[string]*incast.Fun
	globals *scope
	counted map[string]bool

	out    io.Writer
	output []string
	logger *slog.Logger

	maxSteps int
	quota    *QuotaEnforcer
	guard    *CallGuard
	runGen   RunIDGenerator
	runID    string

	tracing bool
	clock   *Clock
	trace   []Event

	ctx         context.Context
	curFunc     string
	initialized bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps sets the statement quota of a run. Zero disables it.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithOutput writes each printed line to w as well as recording it.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithTrace records every update of a global collection.
func WithTrace() Option {
	return func(e *Engine) {
		e.tracing = true
	}
}

// WithRunIDGenerator sets the run id generator. The default generates
// UUIDv7 ids.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runGen = g
	}
}

// New creates an Engine for module with the given global collections.
// Relations start empty; counted relations are refcounted sets.
func New(module *incast.Module, decls Declarations, opts ...Option) (*Engine, error) {
	e := &Engine{
		module:   module,
		funcs:    make(map[string]*incast.Fun),
		globals:  newScope(nil),
		counted:  make(map[string]bool),
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
		guard:    NewCallGuard(),
		runGen:   UUIDv7Generator{},
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.quota = NewQuotaEnforcer(e.maxSteps)
	e.runID = e.runGen.Generate()

	for _, c := range decls.Counted {
		e.counted[c] = true
	}
	for _, r := range decls.Relations {
		if e.counted[r] {
			e.globals.set(r, rt.NewCSet())
		} else {
			e.globals.set(r, rt.NewSet())
		}
	}
	for _, m := range decls.Maps {
		e.globals.set(m, rt.NewMap())
	}
	for _, d := range module.Decls {
		if f, ok := d.(*incast.Fun); ok {
			if _, dup := e.funcs[f.Name]; dup {
				return nil, fmt.Errorf("function %s defined twice", f.Name)
			}
			e.funcs[f.Name] = f
		}
	}
	return e, nil
}

// RunID returns the identifier of this engine's run.
func (e *Engine) RunID() string { return e.runID }

// Init executes the module-level statements once.
func (e *Engine) Init(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	e.initialized = true
	e.ctx = ctx
	var body []incast.Stmt
	for _, d := range e.module.Decls {
		if _, ok := d.(*incast.Fun); !ok {
			body = append(body, d)
		}
	}
	_, err := e.execBlock(e.globals, body)
	return e.wrap(err)
}

// Call calls a function of the module, running Init first if needed.
func (e *Engine) Call(ctx context.Context, name string, args ...rt.Value) (rt.Value, error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	e.ctx = ctx
	v, err := e.callFunc(name, args)
	return v, e.wrap(err)
}

// Result summarises a completed run.
type Result struct {
	RunID  string
	Output []string
	Steps  int
	Trace  []Event
}

// Run executes the module-level statements and then, if entry names a
// function, calls it with args. The Result is returned even when the run
// fails and then holds what happened before the error.
func (e *Engine) Run(ctx context.Context, entry string, args ...rt.Value) (*Result, error) {
	e.logger.Info("run starting", "run_id", e.runID, "entry", entry, "functions", len(e.funcs))
	err := e.Init(ctx)
	if err == nil && entry != "" {
		if _, ok := e.funcs[entry]; ok {
			_, err = e.Call(ctx, entry, args...)
		} else {
			err = &RuntimeError{Code: ErrCodeUnknownName, Message: "no entry function " + entry, RunID: e.runID}
		}
	}
	res := &Result{
		RunID:  e.runID,
		Output: slices.Clone(e.output),
		Steps:  e.quota.Current(),
		Trace:  slices.Clone(e.trace),
	}
	if err != nil {
		e.logger.Error("run failed", "run_id", e.runID, "steps", res.Steps, "error", err)
		return res, err
	}
	e.logger.Info("run finished", "run_id", e.runID, "steps", res.Steps, "lines", len(res.Output))
	return res, nil
}

// Output returns the lines printed so far.
func (e *Engine) Output() []string { return slices.Clone(e.output) }

// Global returns the value of a global variable or collection.
func (e *Engine) Global(name string) (rt.Value, bool) {
	v, ok := e.globals.vars[name]
	return v, ok
}

// Size returns the abstract size of the global namespace.
func (e *Engine) Size() int {
	return rt.SizeOfNamespace(e.globals.vars)
}

// wrap stamps the run id onto runtime errors and converts other errors.
func (e *Engine) wrap(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RuntimeError); ok {
		if re.RunID == "" {
			re.RunID = e.runID
		}
		return re
	}
	if err == e.ctx.Err() {
		return err
	}
	return &RuntimeError{Code: codeOf(err), Message: err.Error(), Func: e.curFunc, RunID: e.runID, Err: err}
}

// step counts one executed statement against the quota and checks for
// cancellation.
func (e *Engine) step() error {
	if e.ctx != nil {
		if err := e.ctx.Err(); err != nil {
			return err
		}
	}
	return e.quota.Check(e.runID)
}

func (e *Engine) record(op, target string, elem rt.Value) {
	if !e.tracing {
		return
	}
	ev := Event{Seq: e.clock.Next(), Op: op, Target: target}
	if elem != nil {
		ev.Elem = rt.Format(elem)
	}
	e.trace = append(e.trace, ev)
}

func (e *Engine) errorf(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...), Func: e.curFunc}
}

// fail converts an error from the runtime library.
func (e *Engine) fail(err error) *RuntimeError {
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	return &RuntimeError{Code: codeOf(err), Message: err.Error(), Func: e.curFunc, Err: err}
}
