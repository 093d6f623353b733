// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import "fmt"

// Status is the state of a line search. Terminal statuses carry one of the
// Convergence, Error or Warning bits.
type Status int

const (
	NotStarted  Status = 0
	Convergence Status = 1 << (4 + iota)
	Searching
	Error
	Warning
)

const (
	ErrorNotStarted = Error | (1 + iota)
	ErrorStepChanged
	ErrorStepMinLtZero
	ErrorStepMinGtStepMax
	ErrorStepLtStepMin
	ErrorStepGtStepMax
	ErrorInitialDerivativeGeZero
	WarningRoundingErrors = Warning | (1 + iota)
	WarningXTolTestSatisfied
	WarningStepEqStepMax
	WarningStepEqStepMin
)

var statusText = map[Status]string{
	NotStarted:                   "line search not started",
	Convergence:                  "convergence",
	Searching:                    "searching",
	ErrorNotStarted:              "iterate called while not searching",
	ErrorStepChanged:             "step changed since the last call",
	ErrorStepMinLtZero:           "STPMIN < ZERO",
	ErrorStepMinGtStepMax:        "STPMIN > STPMAX",
	ErrorStepLtStepMin:           "STP < STPMIN",
	ErrorStepGtStepMax:           "STP > STPMAX",
	ErrorInitialDerivativeGeZero: "INITIAL G >= ZERO",
	WarningRoundingErrors:        "ROUNDING ERRORS PREVENT PROGRESS",
	WarningXTolTestSatisfied:     "XTOL TEST SATISFIED",
	WarningStepEqStepMax:         "STP = STPMAX",
	WarningStepEqStepMin:         "STP = STPMIN",
}

func (s Status) String() string {
	if txt, ok := statusText[s]; ok {
		return txt
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsError reports whether s is one of the Error* statuses.
func (s Status) IsError() bool { return s&Error != 0 }

// IsWarning reports whether s is one of the Warning* statuses.
func (s Status) IsWarning() bool { return s&Warning != 0 }

// Done reports whether the search has reached a terminal status.
func (s Status) Done() bool { return s&(Convergence|Error|Warning) != 0 }
