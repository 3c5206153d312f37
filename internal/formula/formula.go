// Package formula evaluates the injected-current and phrenic/lumbar
// motor-drive text expressions that appear in the network description
// (spec.md §3, §9 "Dynamic expressions"). Expressions are parsed once and
// cached per distinct expression text, matching spec.md §9's note that "a minimal
// expression evaluator ... is sufficient". Rather than hand-rolling one,
// this uses github.com/expr-lang/expr, an indirect dependency of the
// teacher module, which already supports +,-,*,/ and named variables and
// lets us additionally expose exp() as a builtin function.
package formula

import (
	"fmt"
	"math"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/uflsim/engine/internal/engerr"
)

func expVal(x float64) float64 { return math.Exp(x) }

// Vars is the environment a formula is evaluated against: named variables
// such as population firing rates or lung volume, plus the exp() builtin.
type Vars map[string]float64

// Cache parses each distinct expression string exactly once and reuses the
// compiled program on every subsequent evaluation, mirroring the "parsed
// once ... and cached per population" requirement.
type Cache struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewCache returns an empty formula cache.
func NewCache() *Cache {
	return &Cache{programs: make(map[string]*vm.Program)}
}

// Eval compiles (if not already cached) and evaluates src against vars,
// returning a configuration error if the formula references an unknown
// identifier or fails to parse.
func (c *Cache) Eval(src string, vars Vars) (float64, error) {
	prog, err := c.compile(src, vars)
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(prog, vars)
	if err != nil {
		return 0, engerr.Config("formula.Eval", fmt.Errorf("evaluating %q: %w", src, err))
	}
	f, ok := toFloat(out)
	if !ok {
		return 0, engerr.Config("formula.Eval", fmt.Errorf("formula %q did not produce a number", src))
	}
	return f, nil
}

func (c *Cache) compile(src string, vars Vars) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[src]; ok {
		return p, nil
	}
	prog, err := expr.Compile(src, expr.Env(vars), expr.Function("exp", func(params ...any) (any, error) {
		x, _ := toFloat(params[0])
		return expVal(x), nil
	}))
	if err != nil {
		return nil, engerr.Config("formula.compile", fmt.Errorf("parsing %q: %w", src, err))
	}
	c.programs[src] = prog
	return prog, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
