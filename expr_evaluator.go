package snapstate

import (
	"sort"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-snapstate/layering"
	"github.com/goliatone/go-snapstate/paths"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator executes rule expressions using github.com/expr-lang/expr.
// Only the member chains an expression mentions are read from state, so a
// tracked rule depends on nothing else.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

type exprProgram struct {
	program *exprvm.Program
	refs    []paths.Path
}

// Evaluate compiles and runs expression against ctx.Readable.
func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile parses expression once and returns a reusable rule.
func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, evaluationError("expr", "", "", StageCompile, ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprProgram, error) {
	key := cacheKey("expr", expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprProgram); ok {
				return program, nil
			}
		}
	}
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, evaluationError("expr", expression, "", StageCompile, err)
	}
	refs := collectExprRefs(&tree.Node, e.registry)

	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		registry := e.registry
		options = append(options, exprlang.Function("call", func(params ...any) (any, error) {
			return dispatchCall(registry, params)
		}))
		for _, name := range registry.Names() {
			fn := name
			options = append(options, exprlang.Function(fn, func(params ...any) (any, error) {
				return registry.Call(fn, params...)
			}))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, evaluationError("expr", expression, "", StageCompile, err)
	}
	bundle := &exprProgram{program: program, refs: refs}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	program    *exprProgram
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, evaluationError("expr", "", "", StageRun, errMissingProgram)
	}
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program.program, r.program.environment(ctx))
	if err != nil {
		return nil, evaluationError("expr", r.expression, ctx.pathLabel(), StageRun, err)
	}
	return result, nil
}

// environment reads every referenced chain through the view. Chains that
// run into a leaf bind the leaf and let expr select the rest; chains that
// run into a missing key bind empty groups so member access yields nil.
func (p *exprProgram) environment(ctx RuleContext) map[string]any {
	env := map[string]any{}
	for _, ref := range p.refs {
		value, depth, found := lookupPath(ctx.Readable, ref)
		if found {
			layering.ForceSet(env, ref[:depth], value)
			continue
		}
		if depth < len(ref) {
			parent := ref[:len(ref)-1]
			if _, ok := layering.Obtain(env, parent); !ok {
				layering.ForceSet(env, parent, map[string]any{})
			}
		}
	}
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	return env
}

// collectExprRefs returns the outermost identifier and member chains of
// node, shortest first. Callees, let bindings and reserved names are
// skipped.
func collectExprRefs(node *ast.Node, registry *FunctionRegistry) []paths.Path {
	v := &exprRefVisitor{
		chains:  map[ast.Node]paths.Path{},
		callees: map[ast.Node]struct{}{},
		locals:  map[string]struct{}{},
	}
	ast.Walk(node, v)

	covered := map[ast.Node]struct{}{}
	for _, member := range v.members {
		if _, callee := v.callees[member]; callee {
			continue
		}
		if _, ok := v.chains[member]; ok {
			covered[member.Node] = struct{}{}
		}
	}

	set := paths.NewSet()
	for n, chain := range v.chains {
		if _, ok := covered[n]; ok {
			continue
		}
		if _, ok := v.callees[n]; ok {
			continue
		}
		if _, ok := v.locals[chain[0]]; ok {
			continue
		}
		if isReserved(chain[0], registry) {
			continue
		}
		set.Add(chain)
	}
	refs := set.Items()
	sort.Slice(refs, func(i, j int) bool {
		if len(refs[i]) != len(refs[j]) {
			return len(refs[i]) < len(refs[j])
		}
		return refs[i].String() < refs[j].String()
	})
	return refs
}

type exprRefVisitor struct {
	chains  map[ast.Node]paths.Path
	members []*ast.MemberNode
	callees map[ast.Node]struct{}
	locals  map[string]struct{}
}

func (v *exprRefVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		v.chains[n] = paths.Path{n.Value}
	case *ast.MemberNode:
		if chain, ok := exprChain(n); ok {
			v.chains[n] = chain
		}
		v.members = append(v.members, n)
	case *ast.CallNode:
		v.callees[n.Callee] = struct{}{}
	case *ast.VariableDeclaratorNode:
		v.locals[n.Name] = struct{}{}
	}
}

func exprChain(node ast.Node) (paths.Path, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return paths.Path{n.Value}, true
	case *ast.MemberNode:
		property, ok := n.Property.(*ast.StringNode)
		if !ok {
			return nil, false
		}
		base, ok := exprChain(n.Node)
		if !ok {
			return nil, false
		}
		return base.Append(property.Value), true
	default:
		return nil, false
	}
}
