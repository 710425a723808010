package symtab

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/agnivade/levenshtein"

	"github.com/roach88/incoq/internal/types"
)

// QueryConfig holds the user-supplied attributes of one query.
type QueryConfig struct {
	Impl     Impl
	Strategy Strategy
	// DemandParams is nil unless the configuration lists them.
	DemandParams []string
	// UsesDemand overrides Config.UsesDemand when set.
	UsesDemand *bool
	Pos        token.Pos
}

// SymbolConfig declares the type of a relation or map.
type SymbolConfig struct {
	Type    types.Type
	Counted bool
	Pos     token.Pos
}

// Config is the symbol configuration of a compilation, written in CUE:
//
//	options: {default_impl: "inc", uses_demand: true}
//	query: Q1: {impl: "inc", demand_param_strat: "all"}
//	relation: S: {type: "Set(Tuple(Number, Number))"}
//	map: M: {type: "Map(Tuple(Number), Number)"}
type Config struct {
	DefaultImpl Impl
	UsesDemand  bool
	Queries     map[string]*QueryConfig
	Relations   map[string]*SymbolConfig
	Maps        map[string]*SymbolConfig
}

// DefaultConfig returns the configuration used when none is given:
// queries are incremental with demand.
func DefaultConfig() *Config {
	return &Config{
		DefaultImpl: Incremental,
		UsesDemand:  true,
		Queries:     make(map[string]*QueryConfig),
		Relations:   make(map[string]*SymbolConfig),
		Maps:        make(map[string]*SymbolConfig),
	}
}

// QueryNames returns the configured query names, sorted.
func (c *Config) QueryNames() []string {
	names := make([]string, 0, len(c.Queries))
	for n := range c.Queries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Encode returns the map form of c, suitable for canonical hashing.
func (c *Config) Encode() map[string]any {
	queries := make(map[string]any, len(c.Queries))
	for name, q := range c.Queries {
		m := map[string]any{
			"impl":               string(q.Impl),
			"demand_param_strat": string(q.Strategy),
		}
		if q.DemandParams != nil {
			dp := make([]any, len(q.DemandParams))
			for i, p := range q.DemandParams {
				dp[i] = p
			}
			m["demand_params"] = dp
		}
		if q.UsesDemand != nil {
			m["uses_demand"] = *q.UsesDemand
		}
		queries[name] = m
	}
	return map[string]any{
		"options": map[string]any{
			"default_impl": string(c.DefaultImpl),
			"uses_demand":  c.UsesDemand,
		},
		"query":    queries,
		"relation": encodeSymbols(c.Relations),
		"map":      encodeSymbols(c.Maps),
	}
}

func encodeSymbols(syms map[string]*SymbolConfig) map[string]any {
	out := make(map[string]any, len(syms))
	for name, sc := range syms {
		typ := types.Bottom.String()
		if sc.Type != nil {
			typ = sc.Type.String()
		}
		out[name] = map[string]any{"type": typ, "counted": sc.Counted}
	}
	return out
}

// ConfigError reports an invalid configuration entry.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadConfig reads a CUE configuration file.
func LoadConfig(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(path, src)
}

// ParseConfig compiles CUE source into a Config. Unset options keep the
// values of DefaultConfig.
func ParseConfig(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := DefaultConfig()
	if opts := v.LookupPath(cue.ParsePath("options")); opts.Exists() {
		if s, ok, err := optString(opts, "default_impl"); err != nil {
			return nil, err
		} else if ok {
			cfg.DefaultImpl = Impl(s)
			if !cfg.DefaultImpl.Valid() {
				return nil, &ConfigError{Field: "options.default_impl", Message: fmt.Sprintf("unknown impl %q", s), Pos: opts.Pos()}
			}
		}
		if b, ok, err := optBool(opts, "uses_demand"); err != nil {
			return nil, err
		} else if ok {
			cfg.UsesDemand = b
		}
	}

	if err := eachField(v, "query", func(name string, qv cue.Value) error {
		qc, err := parseQueryConfig(name, qv)
		if err != nil {
			return err
		}
		cfg.Queries[name] = qc
		return nil
	}); err != nil {
		return nil, err
	}
	if err := eachField(v, "relation", func(name string, rv cue.Value) error {
		sc, err := parseSymbolConfig("relation."+name, rv)
		if err != nil {
			return err
		}
		cfg.Relations[name] = sc
		return nil
	}); err != nil {
		return nil, err
	}
	if err := eachField(v, "map", func(name string, mv cue.Value) error {
		sc, err := parseSymbolConfig("map."+name, mv)
		if err != nil {
			return err
		}
		cfg.Maps[name] = sc
		return nil
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func eachField(v cue.Value, section string, fn func(string, cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func parseQueryConfig(name string, v cue.Value) (*QueryConfig, error) {
	field := "query." + name
	qc := &QueryConfig{Strategy: Unconstrained, Pos: v.Pos()}

	if s, ok, err := optString(v, "impl"); err != nil {
		return nil, err
	} else if ok {
		qc.Impl = Impl(s)
		if !qc.Impl.Valid() {
			return nil, &ConfigError{Field: field + ".impl", Message: fmt.Sprintf("unknown impl %q", s), Pos: v.Pos()}
		}
	}
	if s, ok, err := optString(v, "demand_param_strat"); err != nil {
		return nil, err
	} else if ok {
		qc.Strategy = Strategy(s)
		if !qc.Strategy.Valid() {
			return nil, &ConfigError{Field: field + ".demand_param_strat", Message: fmt.Sprintf("unknown strategy %q", s), Pos: v.Pos()}
		}
	}
	if dp := v.LookupPath(cue.ParsePath("demand_params")); dp.Exists() {
		iter, err := dp.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		qc.DemandParams = []string{}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			qc.DemandParams = append(qc.DemandParams, s)
		}
	}
	if b, ok, err := optBool(v, "uses_demand"); err != nil {
		return nil, err
	} else if ok {
		qc.UsesDemand = &b
	}
	return qc, nil
}

func parseSymbolConfig(field string, v cue.Value) (*SymbolConfig, error) {
	sc := &SymbolConfig{Type: types.Bottom, Pos: v.Pos()}
	if s, ok, err := optString(v, "type"); err != nil {
		return nil, err
	} else if ok {
		t, err := types.Parse(s)
		if err != nil {
			return nil, &ConfigError{Field: field + ".type", Message: err.Error(), Pos: v.Pos()}
		}
		sc.Type = t
	}
	if b, ok, err := optBool(v, "counted"); err != nil {
		return nil, err
	} else if ok {
		sc.Counted = b
	}
	return sc, nil
}

func optString(v cue.Value, path string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func optBool(v cue.Value, path string) (bool, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ConfigError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return first
}

// Suggest returns the candidate closest to name by edit distance, or ""
// when nothing is close enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if bestDist < 0 || d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return best
}
