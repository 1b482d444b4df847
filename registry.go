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
	"fmt"
	"sort"
	"sync"

	"github.com/payrunhq/payrun/config"
)

// ServiceDescriptor describes one schedulable payment service: what it is,
// how often it runs and in what order it is considered relative to its
// siblings when slots are contended.
type ServiceDescriptor struct {
	Name            string `json:"name"`
	ServiceType     string `json:"service_type"`
	Subtype         string `json:"subtype,omitempty"`
	Description     string `json:"description,omitempty"`
	IntervalMinutes int    `json:"interval_minutes"`
	Priority        int    `json:"priority"`
	Enabled         bool   `json:"enabled"`
}

var serviceDescriptions = map[string]string{
	"tra_cuu_ftth":           "FTTH subscription lookup",
	"nap_tien_da_mang":       "multi-network prepaid top-up",
	"nap_tien_viettel":       "Viettel top-up",
	"thanh_toan_tv_internet": "TV and internet bill payment",
	"gach_dien_evn":          "EVN electricity bill settlement",
	"tra_cuu_no_tra_sau":     "postpaid debt lookup",
}

// Registry holds the live service table. Mutations through SetEnabled and
// SetInterval take effect on the next scheduling decision; they do not
// interrupt a service mid-run.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*ServiceDescriptor
}

func NewRegistry(conf map[string]config.ServiceConfig) *Registry {
	services := make(map[string]*ServiceDescriptor, len(conf))
	for name, sc := range conf {
		services[name] = &ServiceDescriptor{
			Name:            name,
			ServiceType:     name,
			Subtype:         sc.Subtype,
			Description:     serviceDescriptions[name],
			IntervalMinutes: sc.IntervalMinutes,
			Priority:        sc.Priority,
			Enabled:         sc.Enabled,
		}
	}
	return &Registry{services: services}
}

func (r *Registry) Get(name string) (ServiceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sd, ok := r.services[name]
	if !ok {
		return ServiceDescriptor{}, fmt.Errorf("unknown service: %s", name)
	}
	return *sd, nil
}

// List returns all descriptors ordered by priority, ties broken by name.
func (r *Registry) List() []ServiceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ServiceDescriptor, 0, len(r.services))
	for _, sd := range r.services {
		out = append(out, *sd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sd, ok := r.services[name]
	if !ok {
		return fmt.Errorf("unknown service: %s", name)
	}
	sd.Enabled = enabled
	return nil
}

func (r *Registry) SetInterval(name string, minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("interval must be at least one minute, got %d", minutes)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sd, ok := r.services[name]
	if !ok {
		return fmt.Errorf("unknown service: %s", name)
	}
	sd.IntervalMinutes = minutes
	return nil
}
