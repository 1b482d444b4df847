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
package model

import "errors"

// CreateOrderBatch is the intake request: one raw code line per entry.
type CreateOrderBatch struct {
	ServiceType string   `json:"service_type"`
	UserID      string   `json:"user_id"`
	Codes       []string `json:"codes"`
}

func (c *CreateOrderBatch) ValidateCreateOrderBatch() error {
	if c.ServiceType == "" {
		return errors.New("service_type is required")
	}
	if c.UserID == "" {
		return errors.New("user_id is required")
	}
	if len(c.Codes) == 0 {
		return errors.New("codes must not be empty")
	}
	return nil
}

// UpdateInterval changes how often a service looks for work.
type UpdateInterval struct {
	IntervalMinutes int `json:"interval_minutes"`
}

func (u *UpdateInterval) ValidateUpdateInterval() error {
	if u.IntervalMinutes < 1 {
		return errors.New("interval_minutes must be at least 1")
	}
	return nil
}
