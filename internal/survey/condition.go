package survey

import (
	"errors"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// Condition is a compiled visibility expression such as
//
//	p1 == 1 and (p2 > 3 or p3 == SKIPPED)
//
// Identifiers name earlier survey items; SKIPPED and NOT_DISPLAYED are
// available as constants.
type Condition struct {
	source  string
	program *vm.Program
	refs    []string
}

// constants visible to every expression, never treated as item references.
var conditionConstants = map[string]any{
	Skipped:      Skipped,
	NotDisplayed: NotDisplayed,
}

// NewCondition compiles source. An empty source yields a nil Condition,
// meaning "always displayed".
func NewCondition(itemID, source string) (*Condition, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}

	tree, err := parser.Parse(source)
	if err != nil {
		return nil, fault.NewDefinitionError(itemID, "the condition could not be parsed", err)
	}

	c := &identifierCollector{seen: map[string]bool{}}
	ast.Walk(&tree.Node, c)

	// Item ids take precedence over expr builtins of the same name, so an
	// item may be called count or max.
	env := make(map[string]any, len(c.refs)+len(conditionConstants))
	opts := []expr.Option{expr.AsBool()}
	for _, ref := range c.refs {
		env[ref] = nil
		opts = append(opts, expr.DisableBuiltin(ref))
	}
	for k, v := range conditionConstants {
		env[k] = v
	}
	opts = append(opts, expr.Env(env))

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fault.NewDefinitionError(itemID, "the condition could not be compiled", err)
	}

	return &Condition{
		source:  source,
		program: program,
		refs:    c.refs,
	}, nil
}

// MustCondition is NewCondition for expressions known to be valid.
func MustCondition(source string) *Condition {
	c, err := NewCondition("", source)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Condition) String() string {
	return c.source
}

// References returns the item ids the expression reads, sorted.
func (c *Condition) References() []string {
	return append([]string(nil), c.refs...)
}

// Evaluate runs the expression against the responses given so far. Every
// referenced id must be present in responses; a missing one is a reference
// to an item that is not answered before this one.
func (c *Condition) Evaluate(responses map[string]any) (bool, error) {
	if c == nil {
		return true, nil
	}

	env := make(map[string]any, len(responses)+len(conditionConstants))
	sentinel := false
	for _, ref := range c.refs {
		v, ok := responses[ref]
		if !ok {
			return false, fault.NewDefinitionError(ref, "the condition '"+c.source+"' references an item that is not answered before it", nil)
		}
		if s, isString := v.(string); isString && (s == Skipped || s == NotDisplayed) {
			sentinel = true
		}
		env[ref] = v
	}
	for k, v := range conditionConstants {
		env[k] = v
	}

	output, err := expr.Run(c.program, env)
	if err != nil {
		// Comparing a skipped or hidden answer with a number fails to run;
		// such a comparison is false.
		if sentinel {
			return false, nil
		}
		return false, fault.NewDefinitionError("", "the condition '"+c.source+"' could not be evaluated", err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fault.NewDefinitionError("", "the condition '"+c.source+"' did not return a boolean", errors.New("non-boolean result"))
	}

	return result, nil
}

// identifierCollector records every free identifier in an expression.
type identifierCollector struct {
	seen map[string]bool
	refs []string
}

func (c *identifierCollector) Visit(node *ast.Node) {
	ident, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, isConst := conditionConstants[ident.Value]; isConst || c.seen[ident.Value] {
		return
	}
	c.seen[ident.Value] = true
	c.refs = append(c.refs, ident.Value)
	sort.Strings(c.refs)
}
