// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"fmt"

	"github.com/curioloop/optimpack/linesearch"
)

// Task tells the caller what to do before the next call to Iterate.
type Task int

const (
	// Error means the optimizer stopped on an unrecoverable failure, see Reason.
	Error Task = iota
	// ComputeFG asks for the function value and gradient at x.
	ComputeFG
	// NewX reports a new accepted iterate x, f and g.
	NewX
	// FinalX reports that x satisfies the convergence criterion.
	FinalX
	// Warning means the optimizer cannot make further progress, see Reason.
	Warning
	// ComputeF asks for the function value only.
	ComputeF
	// ProjectV asks the caller to project the variables onto the feasible set.
	ProjectV
)

func (t Task) String() string {
	switch t {
	case Error:
		return "ERROR"
	case ComputeFG:
		return "COMPUTE_FG"
	case NewX:
		return "NEW_X"
	case FinalX:
		return "FINAL_X"
	case Warning:
		return "WARNING"
	case ComputeF:
		return "COMPUTE_F"
	case ProjectV:
		return "PROJECT_V"
	}
	return fmt.Sprintf("Task(%d)", int(t))
}

// Reason explains the current task.
type Reason int

const (
	NoReason Reason = iota
	Converged
	BadPreconditioner
	NotADescent
	RoundingErrorsPreventProgress
	StepEqStepMin
	StepEqStepMax
	XTolTestSatisfied
	StepChanged
	InvalidStepBounds
	LineSearchNotStarted
	TooManyIterations
	TooManyEvaluations
	TimeLimitExceeded
	CallbackPanicked
	IncorrectSpace
	ProjectionFailed
	OperatorFailed
	NotStarted
)

var reasonText = [...]string{
	NoReason:                      "no reason",
	Converged:                     "CONVERGENCE: NORM_OF_(PROJECTED)_GRADIENT_<=_TOLERANCE",
	BadPreconditioner:             "preconditioner is not positive definite",
	NotADescent:                   "search direction is not a descent direction",
	RoundingErrorsPreventProgress: "rounding errors prevent progress",
	StepEqStepMin:                 "line search step at lower bound",
	StepEqStepMax:                 "line search step at upper bound",
	XTolTestSatisfied:             "line search interval width below tolerance",
	StepChanged:                   "line search step changed by caller",
	InvalidStepBounds:             "invalid line search step bounds",
	LineSearchNotStarted:          "line search not started",
	TooManyIterations:             "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT",
	TooManyEvaluations:            "STOP: TOTAL NO. of f AND g EVALUATIONS EXCEEDS LIMIT",
	TimeLimitExceeded:             "STOP: CPU EXCEEDING THE TIME LIMIT",
	CallbackPanicked:              "STOP: CALLBACK REQUESTED HALT",
	IncorrectSpace:                "vector does not belong to the variable space",
	ProjectionFailed:              "projection onto the feasible set failed",
	OperatorFailed:                "inverse Hessian approximation failed",
	NotStarted:                    "optimizer not started",
}

// Message returns the text describing r.
func Message(r Reason) string {
	if r >= 0 && int(r) < len(reasonText) {
		return reasonText[r]
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

func (r Reason) String() string { return Message(r) }

// fromSearch maps a terminal line search status that is not a success.
func fromSearch(st linesearch.Status) (Task, Reason) {
	switch st {
	case linesearch.ErrorNotStarted:
		return Error, LineSearchNotStarted
	case linesearch.ErrorStepChanged:
		return Error, StepChanged
	case linesearch.ErrorStepMinLtZero, linesearch.ErrorStepMinGtStepMax,
		linesearch.ErrorStepLtStepMin, linesearch.ErrorStepGtStepMax:
		return Error, InvalidStepBounds
	case linesearch.ErrorInitialDerivativeGeZero:
		return Error, NotADescent
	case linesearch.WarningRoundingErrors:
		return Warning, RoundingErrorsPreventProgress
	case linesearch.WarningXTolTestSatisfied:
		return Warning, XTolTestSatisfied
	case linesearch.WarningStepEqStepMax:
		return Warning, StepEqStepMax
	case linesearch.WarningStepEqStepMin:
		return Warning, StepEqStepMin
	}
	if st.IsWarning() {
		return Warning, NoReason
	}
	return Error, NoReason
}
