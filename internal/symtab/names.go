package symtab

import (
	"fmt"
	"strconv"
	"strings"
)

// Generated names. Every name produced here starts with a character
// sequence user programs are not expected to use.

// DemandSetName names the demand relation of query q.
func DemandSetName(q string) string { return "_U_" + q }

// DemandFuncName names the function that adds to q's demand set.
func DemandFuncName(q string) string { return "_demand_" + q }

// DemandQueryName names the demand query of a nested query q.
func DemandQueryName(q string) string { return "_QU_" + q }

// ResultRelName names the relation maintaining comprehension q.
func ResultRelName(q string) string { return "R_" + q }

// AggrMapName names the map maintaining aggregate q.
func AggrMapName(q string) string { return "A_" + q }

// MaintFuncName names the procedure that maintains target after op is
// applied to source.
func MaintFuncName(target, source, op string) string {
	return fmt.Sprintf("_maint_%s_for_%s_%s", target, source, op)
}

// TagName names the n-th tag over variable v of query q.
func TagName(q, v string, n int) string {
	return fmt.Sprintf("%s_T_%s_%d", q, v, n)
}

// FilterName names the n-th filter over relation kind rel of query q.
func FilterName(q, rel string, n int) string {
	return fmt.Sprintf("%s_d_%s_%d", q, rel, n)
}

// TrimCounter strips the trailing _<n> from a tag or filter name.
func TrimCounter(name string) string {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

// Fresh hands out fresh variable names _v1, _v2, ... A single generator
// is shared by all passes of a compilation so names never collide.
type Fresh struct {
	n int
}

// Next returns a fresh variable name.
func (f *Fresh) Next() string {
	f.n++
	return "_v" + strconv.Itoa(f.n)
}

// NextPrefix returns a fresh prefix such as "_v3_" for renaming a group
// of variables.
func (f *Fresh) NextPrefix() string {
	return f.Next() + "_"
}

// Count returns the number of names handed out so far.
func (f *Fresh) Count() int { return f.n }
