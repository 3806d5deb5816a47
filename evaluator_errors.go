package snapstate

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExpression is reported for blank rules.
	ErrEmptyExpression = errors.New("snapstate: expression must not be empty")

	errMissingProgram = errors.New("snapstate: compiled rule has no program")
)

// RuleStage tells whether a rule failed to compile or to run.
type RuleStage string

const (
	StageCompile RuleStage = "compile"
	StageRun     RuleStage = "run"
)

// EvaluationError describes a failed rule: the engine, the expression, the
// view it ran against and the stage that failed.
type EvaluationError struct {
	Engine string
	Expr   string
	Path   string
	Stage  RuleStage
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("%q", e.Expr)
	}
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	stage := e.Stage
	if stage == "" {
		stage = StageRun
	}
	return fmt.Sprintf("snapstate: %s %s of %s at %s: %v", e.Engine, stage, expr, path, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// evaluationError attaches rule metadata to err. An EvaluationError found in
// the chain keeps what it already knows and only gains the blanks.
func evaluationError(engine, expr, path string, stage RuleStage, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.Path == "" {
			existing.Path = path
		}
		if existing.Stage == "" {
			existing.Stage = stage
		}
		return err
	}
	return &EvaluationError{Engine: engine, Expr: expr, Path: path, Stage: stage, Err: err}
}
