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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrunhq/payrun/config"
	"github.com/payrunhq/payrun/internal/apierror"
	"github.com/payrunhq/payrun/model"
)

func newTestScheduler(store *fakeStore, actuator *scriptedActuator) (*Scheduler, *Dispatcher) {
	registry := NewRegistry(config.DefaultServices())
	dispatcher := NewDispatcher(2)
	executor := NewExecutor(store, actuator, nil, 1, time.Millisecond)
	scheduler := NewScheduler(registry, dispatcher, executor, store, 0, 0, time.Millisecond)
	return scheduler, dispatcher
}

func TestRunServiceProcessesEveryCodeInBatch(t *testing.T) {
	store := newFakeStore()
	store.batches["tra_cuu_ftth"] = &model.PendingBatch{
		Codes: []string{"0981111111", "0982222222"},
		CodeOrderMap: []model.CodeOrderPair{
			{Code: "0981111111", OrderID: "ord_1"},
			{Code: "0982222222", OrderID: "ord_2"},
		},
	}
	actuator := &scriptedActuator{}
	scheduler, _ := newTestScheduler(store, actuator)

	scheduler.RunService(context.Background(), "tra_cuu_ftth")

	assert.Equal(t, 2, actuator.attemptCount())
	terminal := store.terminalWrites()
	require.Len(t, terminal, 2)
	assert.Equal(t, "ord_1", terminal[0].OrderID)
	assert.Equal(t, "ord_2", terminal[1].OrderID)
	for _, w := range terminal {
		assert.Equal(t, model.StatusSuccess, w.Status)
	}
}

func TestRunServiceSkipsMalformedCodes(t *testing.T) {
	store := newFakeStore()
	store.batches["nap_tien_da_mang"] = &model.PendingBatch{
		Codes: []string{"0981111111|abc", "0982222222|20000"},
		CodeOrderMap: []model.CodeOrderPair{
			{Code: "0981111111|abc", OrderID: "ord_1"},
			{Code: "0982222222|20000", OrderID: "ord_2"},
		},
	}
	actuator := &scriptedActuator{}
	scheduler, _ := newTestScheduler(store, actuator)

	scheduler.RunService(context.Background(), "nap_tien_da_mang")

	assert.Equal(t, 1, actuator.attemptCount())
	terminal := store.terminalWrites()
	require.Len(t, terminal, 1)
	assert.Equal(t, "ord_2", terminal[0].OrderID)
}

func TestRunServiceSkipsTickWhenStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = apierror.NewAPIError(apierror.ErrUnavailable, "store is unreachable", nil)
	actuator := &scriptedActuator{}
	scheduler, dispatcher := newTestScheduler(store, actuator)

	scheduler.RunService(context.Background(), "tra_cuu_ftth")

	assert.Equal(t, 0, actuator.attemptCount())
	assert.Empty(t, store.recordedWrites())
	// The slot must be released so the next tick can run.
	assert.Equal(t, 0, dispatcher.Status().ActiveCount)
}

func TestRunServiceRespectsAdmission(t *testing.T) {
	store := newFakeStore()
	store.batches["tra_cuu_ftth"] = &model.PendingBatch{
		Codes:        []string{"0981111111"},
		CodeOrderMap: []model.CodeOrderPair{{Code: "0981111111", OrderID: "ord_1"}},
	}
	actuator := &scriptedActuator{}
	scheduler, dispatcher := newTestScheduler(store, actuator)

	dispatcher.SetGlobalLock(true)
	scheduler.RunService(context.Background(), "tra_cuu_ftth")
	assert.Equal(t, 0, actuator.attemptCount())

	dispatcher.SetGlobalLock(false)
	scheduler.RunService(context.Background(), "tra_cuu_ftth")
	assert.Equal(t, 1, actuator.attemptCount())
}

func TestRunServiceIgnoresDisabledService(t *testing.T) {
	store := newFakeStore()
	store.batches["tra_cuu_ftth"] = &model.PendingBatch{
		Codes:        []string{"0981111111"},
		CodeOrderMap: []model.CodeOrderPair{{Code: "0981111111", OrderID: "ord_1"}},
	}
	actuator := &scriptedActuator{}
	scheduler, _ := newTestScheduler(store, actuator)

	require.NoError(t, scheduler.registry.SetEnabled("tra_cuu_ftth", false))
	scheduler.RunService(context.Background(), "tra_cuu_ftth")
	assert.Equal(t, 0, actuator.attemptCount())
}

func TestRunLoopStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	actuator := &scriptedActuator{}
	scheduler, _ := newTestScheduler(store, actuator)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.RunLoop(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunLoop did not stop after context cancellation")
	}
}

func TestStartTimersRegistersEnabledServicesOnly(t *testing.T) {
	store := newFakeStore()
	actuator := &scriptedActuator{}
	scheduler, _ := newTestScheduler(store, actuator)

	require.NoError(t, scheduler.registry.SetEnabled("gach_dien_evn", false))
	require.NoError(t, scheduler.StartTimers(context.Background()))
	defer scheduler.Stop()

	scheduler.mu.Lock()
	entries := len(scheduler.entryIDs)
	_, hasDisabled := scheduler.entryIDs["gach_dien_evn"]
	scheduler.mu.Unlock()

	assert.Equal(t, 5, entries)
	assert.False(t, hasDisabled)

	assert.Error(t, scheduler.StartTimers(context.Background()))
}

func TestRescheduleDropsDisabledEntry(t *testing.T) {
	store := newFakeStore()
	actuator := &scriptedActuator{}
	scheduler, _ := newTestScheduler(store, actuator)

	require.NoError(t, scheduler.StartTimers(context.Background()))
	defer scheduler.Stop()

	require.NoError(t, scheduler.registry.SetEnabled("tra_cuu_ftth", false))
	require.NoError(t, scheduler.Reschedule(context.Background(), "tra_cuu_ftth"))

	scheduler.mu.Lock()
	_, exists := scheduler.entryIDs["tra_cuu_ftth"]
	scheduler.mu.Unlock()
	assert.False(t, exists)

	require.NoError(t, scheduler.registry.SetEnabled("tra_cuu_ftth", true))
	require.NoError(t, scheduler.Reschedule(context.Background(), "tra_cuu_ftth"))

	scheduler.mu.Lock()
	_, exists = scheduler.entryIDs["tra_cuu_ftth"]
	scheduler.mu.Unlock()
	assert.True(t, exists)
}
