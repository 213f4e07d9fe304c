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
	"fmt"
	"strings"
)

// LabelsSubset reports whether every label in want is present in have.
// A target with labels {region:eastus2} therefore matches any host carrying
// at least that label.
func LabelsSubset(want, have []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, l := range have {
		set[l] = struct{}{}
	}
	for _, l := range want {
		if _, ok := set[l]; !ok {
			return false
		}
	}
	return true
}

// ValidateLabels checks the key:value shape of a label set.
func ValidateLabels(labels []string) error {
	for _, l := range labels {
		key, value, ok := strings.Cut(l, ":")
		if !ok || key == "" || value == "" {
			return fmt.Errorf("label %q is not of the form key:value", l)
		}
	}
	return nil
}

// SplitLabels converts key:value pairs into a map for template rendering.
// Later duplicates of a key win.
func SplitLabels(labels []string) map[string]string {
	out := make(map[string]string, len(labels))
	for _, l := range labels {
		if key, value, ok := strings.Cut(l, ":"); ok {
			out[key] = value
		}
	}
	return out
}
