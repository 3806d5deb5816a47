package snapstate

import (
	"fmt"

	"github.com/dop251/goja"
)

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsEvaluator)

// JSWithProgramCache applies a ProgramCache to the JS evaluator.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		e.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS evaluator.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// jsEvaluator runs expressions in goja with the view bound to the global
// "state" object. Property reads on state go through the view and are
// recorded; assignments fail with a ReadOnlyError.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	e := &jsEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, evaluationError("js", "", "", StageCompile, ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, evaluationError("js", expression, "", StageCompile, err)
	}
	return &jsCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := cacheKey("js", expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapExpression(expression), true)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, program *goja.Program) (any, error) {
	vm := goja.New()
	var state *stateObject
	if ctx.Readable != nil {
		state = &stateObject{vm: vm, view: ctx.Readable.Dynamic(), fault: new(error)}
		if err := vm.Set("state", vm.NewDynamicObject(state)); err != nil {
			return nil, err
		}
	} else if err := vm.Set("state", goja.Null()); err != nil {
		return nil, err
	}
	if err := e.injectContext(vm, ctx); err != nil {
		return nil, err
	}

	value, err := vm.RunProgram(program)
	if state != nil && *state.fault != nil {
		return nil, *state.fault
	}
	if err != nil {
		return nil, err
	}
	return exportJS(value), nil
}

func (e *jsEvaluator) injectContext(vm *goja.Runtime, ctx RuleContext) error {
	if err := vm.Set("now", ctx.timestamp()); err != nil {
		return err
	}
	if err := vm.Set("args", ctx.Args); err != nil {
		return err
	}
	if e.registry == nil {
		return nil
	}
	registry := e.registry
	if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
		return registry.Call(name, arguments...)
	}); err != nil {
		return err
	}
	for _, name := range registry.Names() {
		fn := name
		if err := vm.Set(fn, func(arguments ...any) (any, error) {
			return registry.Call(fn, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

// exportJS converts a result to plain Go values. State objects returned by
// an expression come back as snapshots.
func exportJS(value goja.Value) any {
	if value == nil {
		return nil
	}
	exported := value.Export()
	if obj, ok := exported.(*stateObject); ok {
		return obj.AdmitIntoState()
	}
	return exported
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, evaluationError("js", "", "", StageRun, errMissingProgram)
	}
	ctx = ctx.withDefaults()
	value, err := r.evaluator.run(ctx, r.program)
	if err != nil {
		return nil, evaluationError("js", r.expression, ctx.pathLabel(), StageRun, err)
	}
	return value, nil
}

// stateObject exposes a View as a goja dynamic object. The first failed
// assignment or deletion is kept in fault and rethrown into the script.
type stateObject struct {
	vm    *goja.Runtime
	view  View
	fault *error
}

var _ goja.DynamicObject = (*stateObject)(nil)

func (o *stateObject) Get(key string) goja.Value {
	value, ok := o.view.Lookup(key)
	if !ok {
		return goja.Undefined()
	}
	if nested, isView := value.(View); isView {
		return o.vm.NewDynamicObject(&stateObject{vm: o.vm, view: nested, fault: o.fault})
	}
	return o.vm.ToValue(value)
}

func (o *stateObject) Set(key string, val goja.Value) bool {
	o.throw(o.view.Assign(key, val.Export()))
	return true
}

func (o *stateObject) Has(key string) bool {
	_, ok := o.view.Lookup(key)
	return ok
}

func (o *stateObject) Delete(key string) bool {
	o.throw(o.view.Remove(key))
	return true
}

func (o *stateObject) Keys() []string {
	return o.view.Keys()
}

func (o *stateObject) AdmitIntoState() any {
	if admissible, ok := o.view.(interface{ AdmitIntoState() any }); ok {
		return admissible.AdmitIntoState()
	}
	return nil
}

func (o *stateObject) throw(err error) {
	if err == nil {
		return
	}
	if *o.fault == nil {
		*o.fault = err
	}
	panic(o.vm.NewGoError(err))
}
