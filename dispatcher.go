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
	"sort"
	"sync"
	"time"
)

// Dispatcher is the admission gate in front of the scheduler. It bounds how
// many services may be marked running at once and carries the process-wide
// suspension flag. It is an admission gate only: actual actuator work is
// serialized separately by the executor.
type Dispatcher struct {
	mu            sync.Mutex
	running       map[string]struct{}
	maxConcurrent int
	globalLock    bool
}

// DispatcherStatus is the operator-visible snapshot of scheduler state.
type DispatcherStatus struct {
	ActiveCount     int       `json:"active_count"`
	MaxConcurrent   int       `json:"max_concurrent"`
	RunningServices []string  `json:"running_services"`
	GlobalLock      bool      `json:"global_lock"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewDispatcher(maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		running:       make(map[string]struct{}),
		maxConcurrent: maxConcurrent,
	}
}

// TryAdmit marks the service running if the global lock is clear, the
// concurrency cap has room and the service is not already running. A refused
// service is skipped, not queued; its work surfaces again next tick.
func (d *Dispatcher) TryAdmit(service string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.globalLock {
		return false
	}
	if len(d.running) >= d.maxConcurrent {
		return false
	}
	if _, active := d.running[service]; active {
		return false
	}
	d.running[service] = struct{}{}
	return true
}

// Release clears the running mark. Safe to call for a service that was
// never admitted.
func (d *Dispatcher) Release(service string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.running, service)
}

// SetGlobalLock suspends (or resumes) all new admissions. In-flight
// services are unaffected.
func (d *Dispatcher) SetGlobalLock(locked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.globalLock = locked
}

func (d *Dispatcher) Status() DispatcherStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	services := make([]string, 0, len(d.running))
	for name := range d.running {
		services = append(services, name)
	}
	sort.Strings(services)

	return DispatcherStatus{
		ActiveCount:     len(d.running),
		MaxConcurrent:   d.maxConcurrent,
		RunningServices: services,
		GlobalLock:      d.globalLock,
		Timestamp:       time.Now(),
	}
}
