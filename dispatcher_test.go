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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherAdmitsUpToCap(t *testing.T) {
	d := NewDispatcher(2)

	assert.True(t, d.TryAdmit("tra_cuu_ftth"))
	assert.True(t, d.TryAdmit("nap_tien_viettel"))
	assert.False(t, d.TryAdmit("gach_dien_evn"))

	d.Release("tra_cuu_ftth")
	assert.True(t, d.TryAdmit("gach_dien_evn"))
}

func TestDispatcherRefusesDuplicateService(t *testing.T) {
	d := NewDispatcher(3)

	assert.True(t, d.TryAdmit("tra_cuu_ftth"))
	assert.False(t, d.TryAdmit("tra_cuu_ftth"))

	d.Release("tra_cuu_ftth")
	assert.True(t, d.TryAdmit("tra_cuu_ftth"))
}

func TestDispatcherGlobalLockBlocksAdmission(t *testing.T) {
	d := NewDispatcher(2)
	assert.True(t, d.TryAdmit("tra_cuu_ftth"))

	d.SetGlobalLock(true)
	assert.False(t, d.TryAdmit("nap_tien_viettel"))

	// In-flight services are unaffected and can still release.
	d.Release("tra_cuu_ftth")
	assert.False(t, d.TryAdmit("tra_cuu_ftth"))

	d.SetGlobalLock(false)
	assert.True(t, d.TryAdmit("tra_cuu_ftth"))
}

func TestDispatcherStatusSnapshot(t *testing.T) {
	d := NewDispatcher(2)
	d.TryAdmit("nap_tien_viettel")
	d.TryAdmit("tra_cuu_ftth")

	status := d.Status()
	assert.Equal(t, 2, status.ActiveCount)
	assert.Equal(t, 2, status.MaxConcurrent)
	assert.Equal(t, []string{"nap_tien_viettel", "tra_cuu_ftth"}, status.RunningServices)
	assert.False(t, status.GlobalLock)
	assert.False(t, status.Timestamp.IsZero())
}

func TestDispatcherMinimumCapIsOne(t *testing.T) {
	d := NewDispatcher(0)
	assert.True(t, d.TryAdmit("tra_cuu_ftth"))
	assert.False(t, d.TryAdmit("nap_tien_viettel"))
}
