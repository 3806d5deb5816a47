package snapstate

import "time"

// RuleContext carries inputs needed when evaluating an expression. Reads
// go through Readable, so evaluating inside an observer records exactly the
// paths the expression touches.
type RuleContext struct {
	Readable *Readable
	Now      *time.Time
	Args     map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) pathLabel() string {
	return pathLabel(ctx.Readable.Path())
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// reservedNames are bound by every evaluator and never resolved from state.
var reservedNames = map[string]struct{}{
	"now":  {},
	"args": {},
	"call": {},
}

func isReservedName(name string) bool {
	_, ok := reservedNames[name]
	return ok
}
