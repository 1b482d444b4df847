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
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/payrunhq/payrun/config"
	"github.com/payrunhq/payrun/database"
	sessionlock "github.com/payrunhq/payrun/internal/lock"
	"github.com/payrunhq/payrun/model"
)

// Payrun wires the engine together: store, actuator, executor, registry,
// dispatcher and scheduler. One instance per process.
type Payrun struct {
	store      database.IDataSource
	redis      redis.UniversalClient
	registry   *Registry
	dispatcher *Dispatcher
	executor   *Executor
	scheduler  *Scheduler
}

func NewPayrun(store database.IDataSource) (*Payrun, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisOption, err := redis.ParseURL(fmt.Sprintf("redis://%s", configuration.Redis.Dns))
	if err != nil {
		return nil, err
	}
	redisClient := redis.NewClient(redisOption)

	session := sessionlock.NewSessionLock(redisClient, "payrun:portal-session", database.GenerateUUIDWithSuffix("node"))
	executor := NewExecutor(
		store,
		&PortalAgentActuator{},
		session,
		configuration.Scheduler.MaxRetries,
		time.Duration(configuration.Scheduler.RetryBackoffSec)*time.Second,
	)
	registry := NewRegistry(configuration.Services)
	dispatcher := NewDispatcher(configuration.Scheduler.MaxConcurrent)
	scheduler := NewScheduler(
		registry,
		dispatcher,
		executor,
		store,
		time.Duration(configuration.Scheduler.CodeDelaySec)*time.Second,
		time.Duration(configuration.Scheduler.ServiceDelaySec)*time.Second,
		time.Duration(configuration.Scheduler.LoopIntervalSec)*time.Second,
	)

	return &Payrun{
		store:      store,
		redis:      redisClient,
		registry:   registry,
		dispatcher: dispatcher,
		executor:   executor,
		scheduler:  scheduler,
	}, nil
}

func (p *Payrun) Scheduler() *Scheduler {
	return p.scheduler
}

// Status returns the operator snapshot: dispatcher state plus the current
// service table.
func (p *Payrun) Status() (DispatcherStatus, []ServiceDescriptor) {
	return p.dispatcher.Status(), p.registry.List()
}

func (p *Payrun) EnableService(ctx context.Context, name string) error {
	if err := p.registry.SetEnabled(name, true); err != nil {
		return err
	}
	return p.scheduler.Reschedule(ctx, name)
}

func (p *Payrun) DisableService(ctx context.Context, name string) error {
	if err := p.registry.SetEnabled(name, false); err != nil {
		return err
	}
	return p.scheduler.Reschedule(ctx, name)
}

func (p *Payrun) SetServiceInterval(ctx context.Context, name string, minutes int) error {
	if err := p.registry.SetInterval(name, minutes); err != nil {
		return err
	}
	return p.scheduler.Reschedule(ctx, name)
}

// SetGlobalLock suspends or resumes all scheduling without touching the
// per-service enabled flags.
func (p *Payrun) SetGlobalLock(locked bool) {
	p.dispatcher.SetGlobalLock(locked)
}

// SubmitOrders ingests a batch of raw code lines for a service, one pending
// order per valid line, and returns how many were accepted.
func (p *Payrun) SubmitOrders(ctx context.Context, serviceType, userID string, lines []string) (int, error) {
	if _, err := p.registry.Get(serviceType); err != nil {
		return 0, err
	}
	return p.store.InsertBatch(ctx, serviceType, userID, lines)
}

func (p *Payrun) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return p.store.GetOrder(ctx, id)
}
