// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package light

import "errors"

// Error classes. Every error returned by a LightClient operation belongs to
// at least one of them.
var (
	ErrInit    = errors.New("light client init error")
	ErrUpdate  = errors.New("light client update error")
	ErrFetch   = errors.New("light client fetch error")
	ErrPersist = errors.New("light client persist error")
)

var (
	ErrNotInitialized = newError("light client not initialized", ErrInit, ErrUpdate, ErrFetch, ErrPersist)

	ErrInvalidBootstrap = newError("invalid bootstrap", ErrInit)

	ErrInvalidUpdate             = newError("invalid update", ErrUpdate)
	ErrFutureUpdate              = newError("future update", ErrInvalidUpdate)
	ErrInvalidFinalityProof      = newError("invalid finality proof", ErrUpdate)
	ErrInvalidCommitteeProof     = newError("invalid committee proof", ErrUpdate)
	ErrInvalidSignature          = newError("invalid signature", ErrUpdate)
	ErrInsufficientParticipation = newError("insufficient participation", ErrUpdate)
	ErrMissingCommitteeForPeriod = newError("missing sync committee for period", ErrUpdate)
	ErrStale                     = newError("stale update", ErrUpdate)

	ErrUnverifiedSlot = newError("unverified slot", ErrFetch)
	ErrNotCached      = newError("not cached", ErrFetch)

	ErrUpstreamUnavailable = newError("upstream unavailable", ErrUpdate, ErrFetch)

	ErrCorruptPersistedState = newError("corrupt persisted state", ErrPersist)
	ErrIOFailure             = newError("io failure", ErrPersist)
)

// classError is a sentinel error belonging to one or more error classes.
type classError struct {
	msg     string
	classes []error
}

func newError(msg string, classes ...error) error {
	return &classError{msg: msg, classes: classes}
}

func (e *classError) Error() string   { return e.msg }
func (e *classError) Unwrap() []error { return e.classes }

// IsSecurityRelevant returns true if the error indicates an update that is
// invalid by itself and will never be accepted, as opposed to stale updates
// and upstream trouble.
func IsSecurityRelevant(err error) bool {
	return errors.Is(err, ErrInvalidUpdate) ||
		errors.Is(err, ErrInvalidFinalityProof) ||
		errors.Is(err, ErrInvalidCommitteeProof) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInsufficientParticipation)
}
