package compiler

import (
	"fmt"
	"log/slog"

	"github.com/roach88/incoq/internal/aggr"
	"github.com/roach88/incoq/internal/comp"
	"github.com/roach88/incoq/internal/demand"
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
	"github.com/roach88/incoq/internal/typecheck"
)

// Result is the outcome of a successful compilation.
type Result struct {
	// Program is the transformed program. It declares every relation and
	// map of the input plus the demand sets, result relations and
	// aggregate maps introduced by compilation.
	Program *incast.Program

	Table *symtab.Table

	// Store holds the types inferred for the input program.
	Store    typecheck.Store
	Illtyped []incast.Node

	// Warnings are non-fatal findings: ill-typed nodes and analyses that
	// hit their limits.
	Warnings []string

	// Structures holds the tag and filter generator of every
	// incrementalized comprehension, by query name.
	Structures map[string]*demand.StructureGenerator

	// Order lists the queries in dependency order.
	Order []string

	InputHash  string
	OutputHash string
}

type options struct {
	logger         *slog.Logger
	heightLimit    int
	iterationLimit int
}

// Option configures Compile.
type Option func(*options)

// WithLogger sets the logger for pipeline progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHeightLimit sets the widening depth of type analysis.
func WithHeightLimit(n int) Option {
	return func(o *options) { o.heightLimit = n }
}

// WithIterationLimit caps the passes of type analysis.
func WithIterationLimit(n int) Option {
	return func(o *options) { o.iterationLimit = n }
}

// Compile validates prog against cfg and rewrites every query configured
// as incremental into maintained auxiliary state. cfg may be nil, in
// which case DefaultConfig applies. prog is not modified.
//
// Pipeline:
//  1. Validate declarations, query occurrences and configuration.
//  2. Import set and dict updates of declared collections.
//  3. Infer types to a fixpoint.
//  4. Determine query parameters and demand parameters.
//  5. Introduce demand sets and demand queries.
//  6. Incrementalize queries, dependencies first.
func Compile(prog *incast.Program, cfg *symtab.Config, opts ...Option) (*Result, error) {
	o := &options{
		logger:         slog.Default(),
		heightLimit:    typecheck.DefaultHeightLimit,
		iterationLimit: typecheck.DefaultIterationLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	if cfg == nil {
		cfg = symtab.DefaultConfig()
	}
	log := o.logger

	res := &Result{Structures: make(map[string]*demand.StructureGenerator)}
	var err error
	if res.InputHash, err = incast.FingerprintValue(incast.DomainCompilation, map[string]any{
		"program": incast.EncodeProgram(prog),
		"config":  cfg.Encode(),
	}); err != nil {
		return nil, phaseError(PhaseValidate, ErrValidation, err)
	}
	log.Info("compile started", "input_hash", res.InputHash)

	if errs := Validate(prog, cfg); len(errs) > 0 {
		return nil, &CompileError{
			Phase:   PhaseValidate,
			Code:    ErrValidation,
			Message: fmt.Sprintf("%d validation error(s)", len(errs)),
			Errors:  errs,
		}
	}

	tab := symtab.New()
	res.Table = tab
	if err := defineCollections(prog, cfg, tab); err != nil {
		return nil, phaseError(PhasePreprocess, ErrValidation, err)
	}
	var tree incast.Node = incast.Clone(prog.Module)
	if err := disallow(tree); err != nil {
		return nil, phaseError(PhasePreprocess, ErrDialect, err)
	}
	if tree, err = importUpdates(tree, tab); err != nil {
		return nil, phaseError(PhasePreprocess, ErrDialect, err)
	}
	if err := defineQueries(tree, cfg, tab); err != nil {
		return nil, phaseError(PhasePreprocess, ErrValidation, err)
	}
	defineVars(tree, tab)
	log.Debug("preprocessed",
		"relations", len(tab.Relations()),
		"maps", len(tab.Maps()),
		"queries", len(tab.Queries()))

	analysis, err := typecheck.Analyze(tree, tab.Store(),
		typecheck.WithHeightLimit(o.heightLimit),
		typecheck.WithIterationLimit(o.iterationLimit),
		typecheck.WithLogger(log))
	if err != nil {
		return nil, phaseError(PhaseTypes, ErrTypeAnalysis, err)
	}
	if err := tab.ApplyStore(analysis.Store); err != nil {
		return nil, phaseError(PhaseTypes, ErrTypeAnalysis, err)
	}
	res.Store = analysis.Store
	res.Illtyped = analysis.Illtyped
	if !analysis.Converged {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("type analysis stopped after %d iterations without converging", analysis.Iterations))
	}
	for _, n := range analysis.Illtyped {
		res.Warnings = append(res.Warnings, "ill-typed: "+incast.Format(n))
	}
	log.Debug("types inferred", "iterations", analysis.Iterations, "illtyped", len(analysis.Illtyped))

	if err := demand.AnalyzeParameters(tree, tab, nil); err != nil {
		return nil, phaseError(PhaseParams, ErrParameters, err)
	}
	if tree, err = demand.Transform(tree, tab); err != nil {
		return nil, phaseError(PhaseDemand, ErrDemand, err)
	}

	if res.Order, err = QueryOrder(tab); err != nil {
		return nil, phaseError(PhaseOrder, ErrQueryCycle, err)
	}
	for _, name := range res.Order {
		sym, _ := tab.Query(name)
		if sym.Impl != symtab.Incremental {
			continue
		}
		if c, ok := sym.Node.(*incast.Comp); ok {
			g := demand.NewStructureGenerator(c, name)
			g.MakeStructs()
			g.SimplifyNames()
			res.Structures[name] = g
		}
		if tree, err = incrementalize(tree, tab, sym); err != nil {
			return nil, phaseError(PhaseIncremental, ErrIncrementalize, err)
		}
		log.Debug("query incrementalized", "query", name, "params", sym.Params, "demand", sym.DemandParams)
	}

	module, ok := tree.(*incast.Module)
	if !ok {
		return nil, phaseError(PhaseIncremental, ErrIncrementalize,
			fmt.Errorf("compiled tree is a %T, not a module", tree))
	}
	res.Program = outputProgram(tab, module)
	if res.OutputHash, err = incast.FingerprintProgram(res.Program); err != nil {
		return nil, phaseError(PhaseIncremental, ErrIncrementalize, err)
	}
	log.Info("compile finished",
		"output_hash", res.OutputHash,
		"queries", len(res.Order),
		"warnings", len(res.Warnings))
	return res, nil
}

func incrementalize(tree incast.Node, tab *symtab.Table, sym *symtab.QuerySymbol) (incast.Node, error) {
	switch sym.Node.(type) {
	case *incast.Comp:
		return comp.Incrementalize(tree, tab, sym)
	case *incast.Aggr, *incast.AggrRestr:
		return aggr.Incrementalize(tree, tab, sym)
	}
	return nil, incast.Errorf(sym.Node, "query %s is neither a comprehension nor an aggregate", sym.Name)
}

func outputProgram(tab *symtab.Table, module *incast.Module) *incast.Program {
	p := &incast.Program{Module: module}
	for _, r := range tab.Relations() {
		p.Relations = append(p.Relations, r.Name)
		if r.Counted {
			p.Counted = append(p.Counted, r.Name)
		}
	}
	for _, m := range tab.Maps() {
		p.Maps = append(p.Maps, m.Name)
	}
	return p
}
