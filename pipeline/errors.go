package pipeline

import (
	"errors"
	"fmt"

	"github.com/carbocation/metacompare/toolrun"
)

type Stage string

const (
	StageValidate   Stage = "validate"
	StageWorkDir    Stage = "workdir"
	StageResolve    Stage = "resolve"
	StageClassify   Stage = "classify"
	StageNormalize  Stage = "normalize"
	StageMerge      Stage = "merge"
	StageSimilarity Stage = "similarity"
)

// ValidationError is a configuration problem found before any tool runs.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// StageError records which stage of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode maps the error returned by Run to a process exit status: 0 for
// success, the failing tool's own exit code when an external tool failed, and
// 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *toolrun.ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}

	return 1
}
