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

// OwnerRef is the parsed form of a config owning_model reference such as
// "deployment:d1" or "workload:w1".
type OwnerRef struct {
	Kind ModelType
	ID   string
}

// ParseOwnerRef splits a kind:id reference and validates the kind.
func ParseOwnerRef(ref string) (OwnerRef, error) {
	kind, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return OwnerRef{}, fmt.Errorf("owning model %q is not of the form kind:id", ref)
	}

	switch ModelType(kind) {
	case ModelDeployment, ModelWorkload, ModelTemplate, ModelWorkspace:
		return OwnerRef{Kind: ModelType(kind), ID: id}, nil
	default:
		return OwnerRef{}, fmt.Errorf("owning model kind %q cannot carry config", kind)
	}
}

// String renders the reference back to its kind:id wire form.
func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}
