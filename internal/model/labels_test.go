/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 ConfigButler

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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelsSubset(t *testing.T) {
	tests := []struct {
		name string
		want []string
		have []string
		ok   bool
	}{
		{"empty selector matches everything", nil, []string{"region:eastus2"}, true},
		{"empty selector matches empty host", nil, nil, true},
		{"exact match", []string{"region:eastus2"}, []string{"region:eastus2"}, true},
		{"subset of larger set", []string{"region:eastus2"}, []string{"region:eastus2", "cloud:azure"}, true},
		{"missing label", []string{"region:westus2"}, []string{"region:eastus2"}, false},
		{"partial overlap is not enough", []string{"region:eastus2", "cloud:azure"}, []string{"region:eastus2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, LabelsSubset(tt.want, tt.have))
		})
	}
}

func TestValidateLabels(t *testing.T) {
	require.NoError(t, ValidateLabels(nil))
	require.NoError(t, ValidateLabels([]string{"region:eastus2", "cloud:azure"}))

	assert.Error(t, ValidateLabels([]string{"region"}))
	assert.Error(t, ValidateLabels([]string{":eastus2"}))
	assert.Error(t, ValidateLabels([]string{"region:"}))
}

func TestSplitLabels(t *testing.T) {
	m := SplitLabels([]string{"region:eastus2", "cloud:azure", "region:westus2"})
	assert.Equal(t, map[string]string{"region": "westus2", "cloud": "azure"}, m)
}

func TestMakeAssignmentID(t *testing.T) {
	assert.Equal(t, "d1|h1", MakeAssignmentID("d1", "h1"))
}
