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
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/payrunhq/payrun/database"
	"github.com/payrunhq/payrun/internal/apierror"
	"github.com/payrunhq/payrun/model"
)

// Scheduler decides when each service looks for work. It runs in one of two
// modes: a cron-backed timer mode where every enabled service fires on its
// own interval, and a loop mode that sweeps all enabled services in priority
// order on a fixed cadence. Both modes funnel through runService, so
// admission, batching and per-code pacing behave identically.
type Scheduler struct {
	registry   *Registry
	dispatcher *Dispatcher
	executor   *Executor
	store      database.IDataSource

	codeDelay    time.Duration
	serviceDelay time.Duration
	loopInterval time.Duration

	mu       sync.Mutex
	cron     *cron.Cron
	entryIDs map[string]cron.EntryID
}

func NewScheduler(registry *Registry, dispatcher *Dispatcher, executor *Executor, store database.IDataSource, codeDelay, serviceDelay, loopInterval time.Duration) *Scheduler {
	return &Scheduler{
		registry:     registry,
		dispatcher:   dispatcher,
		executor:     executor,
		store:        store,
		codeDelay:    codeDelay,
		serviceDelay: serviceDelay,
		loopInterval: loopInterval,
		entryIDs:     make(map[string]cron.EntryID),
	}
}

// StartTimers registers one cron entry per enabled service and starts the
// cron runner. Disabled services get no entry; enabling one later requires
// a Reschedule call.
func (s *Scheduler) StartTimers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler timers already started")
	}
	s.cron = cron.New()

	for _, sd := range s.registry.List() {
		if !sd.Enabled {
			continue
		}
		if err := s.scheduleLocked(ctx, sd); err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("scheduler started in timer mode with %d entries", len(s.entryIDs))
	return nil
}

// Reschedule re-registers the cron entry for a service after its interval or
// enabled flag changed. A no-op in loop mode.
func (s *Scheduler) Reschedule(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	if id, ok := s.entryIDs[name]; ok {
		s.cron.Remove(id)
		delete(s.entryIDs, name)
	}

	sd, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	if !sd.Enabled {
		return nil
	}
	return s.scheduleLocked(ctx, sd)
}

func (s *Scheduler) scheduleLocked(ctx context.Context, sd ServiceDescriptor) error {
	name := sd.Name
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", sd.IntervalMinutes), func() {
		s.RunService(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	s.entryIDs[name] = id
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.entryIDs = make(map[string]cron.EntryID)
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// RunLoop sweeps every enabled service in priority order, then sleeps for
// the loop interval. It returns when the context is cancelled.
func (s *Scheduler) RunLoop(ctx context.Context) {
	logrus.Infof("scheduler started in loop mode, interval %s", s.loopInterval)
	for {
		for _, sd := range s.registry.List() {
			if ctx.Err() != nil {
				return
			}
			if !sd.Enabled {
				continue
			}
			s.RunService(ctx, sd.Name)
			if !sleepCtx(ctx, s.serviceDelay) {
				return
			}
		}
		if !sleepCtx(ctx, s.loopInterval) {
			return
		}
	}
}

// RunService performs one scheduling pass for a service: admission, fetch,
// then sequential processing of each code in the batch. Refused admission
// and an unreachable store both end the pass quietly; the work is retried
// on the next tick.
func (s *Scheduler) RunService(ctx context.Context, name string) {
	sd, err := s.registry.Get(name)
	if err != nil {
		logrus.Errorf("scheduler: %v", err)
		return
	}
	if !sd.Enabled {
		return
	}
	if !s.dispatcher.TryAdmit(name) {
		logrus.Infof("scheduler: %s refused admission, skipping tick", name)
		return
	}
	defer s.dispatcher.Release(name)

	batch, err := s.store.FetchPendingCodes(ctx, sd.ServiceType, sd.Subtype)
	if err != nil {
		if apierror.IsUnavailable(err) {
			logrus.Warnf("scheduler: store unavailable for %s, skipping tick", name)
			return
		}
		logrus.Errorf("scheduler: fetching codes for %s: %v", name, err)
		return
	}
	if batch.IsEmpty() {
		return
	}

	logrus.Infof("scheduler: %s processing %d codes", name, len(batch.Codes))
	for i, raw := range batch.Codes {
		if ctx.Err() != nil {
			return
		}
		code, err := model.ParseCode(raw)
		if err != nil {
			logrus.Warnf("scheduler: %s skipping malformed code %q: %v", name, raw, err)
			continue
		}
		if err := s.executor.Process(ctx, sd.ServiceType, batch.OrderIDFor(raw), code); err != nil {
			logrus.Errorf("scheduler: %s code %s: %v", name, raw, err)
		}
		if i < len(batch.Codes)-1 {
			if !sleepCtx(ctx, s.codeDelay) {
				return
			}
		}
	}
}

// sleepCtx sleeps for d or until the context is cancelled, reporting
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
