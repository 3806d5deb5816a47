package snapstate

import (
	"errors"
	"time"
)

var ErrNoEvaluator = errors.New("snapstate: evaluator not configured")

// RuleReaction receives the result of a tracked rule.
type RuleReaction func(value any, err error)

// RuleOption configures TrackRule and EvaluateRule.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	logger EvaluatorLogger
	args   map[string]any
	track  []TrackOption
}

// WithRuleLogger reports every evaluation to logger.
func WithRuleLogger(logger EvaluatorLogger) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.logger = logger
	}
}

// WithRuleArgs binds args as the "args" variable.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = args
	}
}

// WithRuleTrackOptions forwards opts to the underlying tracking session.
func WithRuleTrackOptions(opts ...TrackOption) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.track = append(cfg.track, opts...)
	}
}

func applyRuleOptions(opts []RuleOption) ruleConfig {
	cfg := ruleConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopEvaluatorLogger{}
	}
	return cfg
}

type ruleResult struct {
	value any
	err   error
}

// TrackRule compiles expression once and tracks it as an observer: the
// session depends on exactly the state paths the expression reads, and
// reaction receives the new result after each matching change.
func TrackRule(t Tracker, evaluator Evaluator, expression string, reaction RuleReaction, opts ...RuleOption) (func(), error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg := applyRuleOptions(opts)
	engine := evaluatorEngineName(evaluator)
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, evaluationError(engine, expression, "", StageCompile, err)
	}

	observer := func(r *Readable) any {
		value, err := runRule(cfg, engine, expression, rule, RuleContext{Readable: r, Args: cfg.args})
		return ruleResult{value: value, err: err}
	}
	var react Reaction
	if reaction != nil {
		react = func(result any) {
			res, _ := result.(ruleResult)
			reaction(res.value, res.err)
		}
	}
	return t.Track(observer, react, cfg.track...)
}

// EvaluateRule evaluates expression once against r.
func EvaluateRule(r *Readable, evaluator Evaluator, expression string, opts ...RuleOption) (any, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg := applyRuleOptions(opts)
	engine := evaluatorEngineName(evaluator)
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, evaluationError(engine, expression, "", StageCompile, err)
	}
	return runRule(cfg, engine, expression, rule, RuleContext{Readable: r, Args: cfg.args})
}

func runRule(cfg ruleConfig, engine, expression string, rule CompiledRule, ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	duration := time.Since(start)
	err = evaluationError(engine, expression, ctx.pathLabel(), StageRun, err)
	cfg.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expression,
		Path:     ctx.pathLabel(),
		Duration: duration,
		Err:      err,
	})
	return value, err
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *jsEvaluator:
		return "js"
	default:
		return "custom"
	}
}
