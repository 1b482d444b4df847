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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/payrunhq/payrun/database"
	sessionlock "github.com/payrunhq/payrun/internal/lock"
	"github.com/payrunhq/payrun/model"
)

const (
	sessionTTL         = 5 * time.Minute
	sessionWaitTimeout = 2 * time.Minute
)

// Executor drives one code at a time to a terminal state: liveness marker,
// actuator run under retry policy, then exactly one terminal write through
// ApplyOutcome. The mutex serializes every actuator invocation across all
// services; the optional session lock extends that exclusion across
// processes sharing the portal session.
type Executor struct {
	store      database.IDataSource
	actuator   Actuator
	session    *sessionlock.SessionLock
	mu         sync.Mutex
	maxRetries int
	backoff    time.Duration
}

func NewExecutor(store database.IDataSource, actuator Actuator, session *sessionlock.SessionLock, maxRetries int, retryBackoff time.Duration) *Executor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Executor{
		store:      store,
		actuator:   actuator,
		session:    session,
		maxRetries: maxRetries,
		backoff:    retryBackoff,
	}
}

// Process runs one unit of work. orderID may be empty for code-only batch
// lines; the owning order is then recovered from the store. The returned
// error reports the terminal failure reason; by the time it returns, the
// outcome has already been written back.
func (e *Executor) Process(ctx context.Context, serviceType, orderID string, code model.Code) error {
	rawCode := code.String()

	if orderID == "" {
		found, err := e.store.FindOrderID(ctx, serviceType, rawCode, "")
		if err != nil {
			return fmt.Errorf("order lookup for code %s: %w", rawCode, err)
		}
		if found == "" {
			return fmt.Errorf("no pending order owns code %s", rawCode)
		}
		orderID = found
	}

	// Liveness marker: a crashed process leaves visible evidence of the
	// last code it was working on.
	if _, err := e.store.ApplyOutcome(ctx, orderID, serviceType, rawCode, model.StatusProcessing, nil, "", nil); err != nil {
		logrus.Warnf("processing marker failed for order %s code %s: %v", orderID, rawCode, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if err := e.session.AcquireWait(ctx, sessionTTL, sessionWaitTimeout); err != nil {
			_, _ = e.store.ApplyOutcome(ctx, orderID, serviceType, rawCode, model.StatusFailed, nil, err.Error(), nil)
			return err
		}
		defer func() {
			if err := e.session.Release(ctx); err != nil {
				logrus.Warn(err)
			}
		}()
	}

	outcome, execErr := e.runActuator(ctx, serviceType, code)
	if execErr != nil {
		_, err := e.store.ApplyOutcome(ctx, orderID, serviceType, rawCode, model.StatusFailed, nil, execErr.Message, nil)
		if err != nil {
			logrus.Warnf("terminal write failed for order %s code %s: %v", orderID, rawCode, err)
		}
		return execErr
	}

	_, err := e.store.ApplyOutcome(ctx, orderID, serviceType, rawCode, model.StatusSuccess, outcome.Amount, outcome.Notes, outcome.Details)
	if err != nil {
		logrus.Warnf("terminal write failed for order %s code %s: %v", orderID, rawCode, err)
	}
	return nil
}

// runActuator invokes the actuator inside the retry loop. Soft failures are
// retried after a constant backoff up to the configured attempt cap; hard
// failures stop immediately.
func (e *Executor) runActuator(ctx context.Context, serviceType string, code model.Code) (*model.Outcome, *ExecError) {
	var outcome *model.Outcome

	operation := func() error {
		out, err := e.actuator.Execute(ctx, serviceType, code)
		if err != nil {
			execErr := Classify(err)
			if execErr.Kind == HardFailure {
				return backoff.Permanent(execErr)
			}
			logrus.Infof("transient failure for code %s, will retry: %s", code.String(), execErr.Message)
			return execErr
		}
		outcome = out
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.backoff), uint64(e.maxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var execErr *ExecError
		if !errors.As(err, &execErr) {
			execErr = Classify(err)
		}
		return nil, execErr
	}
	return outcome, nil
}
