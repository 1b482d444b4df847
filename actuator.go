/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payrun

import (
	"context"
	"fmt"
	"strings"

	"github.com/payrunhq/payrun/model"
)

// Actuator performs the side-effecting work for one code against the target
// portal. It drives a single live automation session, so callers must hold
// the executor's session guard for the duration of Execute.
type Actuator interface {
	Execute(ctx context.Context, serviceType string, code model.Code) (*model.Outcome, error)
}

// ErrorKind classifies an actuator failure for the retry policy.
type ErrorKind int

const (
	// SoftFailure covers timeouts and transient portal or network errors;
	// the executor retries these up to its cap.
	SoftFailure ErrorKind = iota
	// HardFailure is a definitive rejection from the target system; no
	// retry will change the answer.
	HardFailure
)

// ExecError is the classified form of an actuator failure.
type ExecError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// NewHardFailure marks a rejection the retry loop must not re-attempt.
func NewHardFailure(message string) *ExecError {
	return &ExecError{Kind: HardFailure, Message: message}
}

// NewSoftFailure marks a transient failure eligible for retry.
func NewSoftFailure(message string, err error) *ExecError {
	return &ExecError{Kind: SoftFailure, Message: message, Err: err}
}

// hardFailureMarkers are rejection phrases the target system answers with.
// Anything matching is terminal; everything else is assumed transient.
var hardFailureMarkers = []string{
	"not found",
	"invalid",
	"rejected",
	"no debt",
}

// Classify maps an arbitrary actuator error to a retry decision. An error
// that is already an ExecError passes through untouched.
func Classify(err error) *ExecError {
	if err == nil {
		return nil
	}
	if execErr, ok := err.(*ExecError); ok {
		return execErr
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, marker := range hardFailureMarkers {
		if strings.Contains(lower, marker) {
			return &ExecError{Kind: HardFailure, Message: msg, Err: err}
		}
	}
	return &ExecError{Kind: SoftFailure, Message: fmt.Sprintf("transient actuator error: %s", msg), Err: err}
}
