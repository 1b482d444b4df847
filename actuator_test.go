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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPassesThroughExecError(t *testing.T) {
	original := NewHardFailure("subscriber rejected the charge")
	classified := Classify(original)
	assert.Same(t, original, classified)
}

func TestClassifyRecognizesRejectionPhrases(t *testing.T) {
	for _, msg := range []string{
		"subscriber Not Found",
		"invalid phone number",
		"payment rejected by provider",
		"account has no debt",
	} {
		classified := Classify(errors.New(msg))
		assert.Equal(t, HardFailure, classified.Kind, msg)
		assert.Equal(t, msg, classified.Message)
	}
}

func TestClassifyDefaultsToSoftFailure(t *testing.T) {
	err := errors.New("connection reset by peer")
	classified := Classify(err)
	assert.Equal(t, SoftFailure, classified.Kind)
	assert.ErrorIs(t, classified, err)
}

func TestClassifyNil(t *testing.T) {
	require.Nil(t, Classify(nil))
}
