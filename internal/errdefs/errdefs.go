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

// Package errdefs defines the error kinds shared by the model services, the
// stream consumers and the gRPC boundary. Consumers use the kind to decide
// between acknowledging an event (terminal) and retrying it (transient).
package errdefs

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidArgument marks malformed input or an invariant violation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a delete blocked by references or a unique violation.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks a transient persistence, stream or git failure.
	ErrUnavailable = errors.New("unavailable")
	// ErrInternal marks bug-class failures.
	ErrInternal = errors.New("internal")
)

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func Unavailablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnavailable)...)
}

func Internalf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInternal)...)
}

func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsUnavailable(err error) bool     { return errors.Is(err, ErrUnavailable) }

// IsRetryable reports whether a consumer should leave the event unacked and
// try again. Anything that is not clearly a terminal input problem is treated
// as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsInvalidArgument(err) && !IsNotFound(err) && !IsConflict(err)
}

// ToStatus maps an error kind onto the canonical gRPC code for the wire.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	code := codes.Internal
	switch {
	case IsInvalidArgument(err):
		code = codes.InvalidArgument
	case IsNotFound(err):
		code = codes.NotFound
	case IsConflict(err):
		code = codes.FailedPrecondition
	case IsUnavailable(err):
		code = codes.Unavailable
	}

	return status.Error(code, err.Error())
}

// FromStatus reverses ToStatus on the client side so callers can use the
// errdefs predicates regardless of which side of the wire they run on.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.OK:
		return nil
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), ErrInvalidArgument)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), ErrNotFound)
	case codes.FailedPrecondition, codes.AlreadyExists:
		return fmt.Errorf("%s: %w", st.Message(), ErrConflict)
	case codes.Unavailable:
		return fmt.Errorf("%s: %w", st.Message(), ErrUnavailable)
	default:
		return fmt.Errorf("%s: %w", st.Message(), ErrInternal)
	}
}
