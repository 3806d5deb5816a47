package snapstate

import (
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/interpreter"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// celEvaluator runs unchecked CEL programs. Names are resolved lazily
// through a view-backed activation, so only the attributes an expression
// touches are read.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, evaluationError("cel", "", "", StageCompile, ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, evaluationError("cel", expression, "", StageCompile, err)
	}
	return &celCompiledRule{
		program:    program,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	key := cacheKey("cel", expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return e.call(name)
				})),
			celgo.Overload("call_string_dyn",
				[]*celgo.Type{celgo.StringType, celgo.DynType}, celgo.DynType,
				celgo.BinaryBinding(func(name, arg ref.Val) ref.Val {
					return e.call(name, arg)
				})),
			celgo.Overload("call_string_dyn_dyn",
				[]*celgo.Type{celgo.StringType, celgo.DynType, celgo.DynType}, celgo.DynType,
				celgo.FunctionBinding(func(values ...ref.Val) ref.Val {
					return e.call(values...)
				})),
		))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) call(values ...ref.Val) ref.Val {
	args := make([]any, 0, len(values))
	for _, val := range values {
		args = append(args, val.Value())
	}
	result, err := dispatchCall(e.registry, args)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	program    celgo.Program
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.program == nil {
		return nil, evaluationError("cel", "", "", StageRun, errMissingProgram)
	}
	ctx = ctx.withDefaults()
	out, _, err := r.program.Eval(&celActivation{ctx: ctx})
	if err != nil {
		return nil, evaluationError("cel", r.expression, ctx.pathLabel(), StageRun, err)
	}
	return out.Value(), nil
}

// celActivation resolves qualified names such as "a.b.c" through the view.
// CEL asks for the longest candidate first; a name that crosses a leaf is
// declined so the shorter candidate binds the leaf and CEL selects the rest.
type celActivation struct {
	ctx RuleContext
}

var _ interpreter.Activation = (*celActivation)(nil)

func (a *celActivation) ResolveName(name string) (any, bool) {
	switch name {
	case "now":
		return a.ctx.timestamp(), true
	case "args":
		return a.ctx.Args, true
	}
	keys := strings.Split(name, ".")
	if isReservedName(keys[0]) {
		return nil, false
	}
	value, depth, found := lookupPath(a.ctx.Readable, keys)
	switch {
	case !found:
		return nil, true
	case depth < len(keys):
		return nil, false
	default:
		return value, true
	}
}

func (a *celActivation) Parent() interpreter.Activation {
	return nil
}
