// SPDX-License-Identifier: GPL-2.0
/*
 * Copyright (c) 2026 The tlsharness authors.
 *
 * tlsharness is free software; you can redistribute it and/or
 * modify it under the terms of the GNU General Public License as
 * published by the Free Software Foundation; version 2.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston, MA
 * 02110-1301, USA.
 */

package harness

// status is one endpoint's report for the current phase step.
type status int

const (
	statusRetry status = iota
	statusSuccess
	statusError
)

func (s status) String() string {
	switch s {
	case statusRetry:
		return "Retry"
	case statusSuccess:
		return "Success"
	case statusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// phase is one of the strictly ordered connection stages.
type phase int

const (
	phaseHandshake phase = iota
	phaseAppData
	phaseShutdown
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseHandshake:
		return "Handshake"
	case phaseAppData:
		return "ApplicationData"
	case phaseShutdown:
		return "Shutdown"
	case phaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// next advances one phase. Phases are forward-only and never revisited.
func (p phase) next() phase {
	switch p {
	case phaseHandshake:
		return phaseAppData
	case phaseAppData:
		return phaseShutdown
	case phaseShutdown:
		return phaseDone
	default:
		panic("harness: next called on terminal phase")
	}
}

// verdict is the resolver's joint decision for one turn.
type verdict int

const (
	// verdictRetry flips the turn and continues the current phase.
	verdictRetry verdict = iota
	// verdictSuccess completes the current phase for both endpoints.
	verdictSuccess
	verdictClientError
	verdictServerError
	// verdictInternalError means the two statuses are mutually
	// inconsistent: a scheduler or engine contract violation.
	verdictInternalError
)

func (v verdict) String() string {
	switch v {
	case verdictRetry:
		return "Retry"
	case verdictSuccess:
		return "Success"
	case verdictClientError:
		return "ClientError"
	case verdictServerError:
		return "ServerError"
	case verdictInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// resolve combines the acting endpoint's just-updated status with the other
// endpoint's most recent status into a single joint decision.
//
// last is the status of the endpoint that acted this turn, previous the
// status of the one that did not. clientSpokeLast breaks ties: when both
// endpoints end up in error, the failure is attributed to whichever side
// errored first, which is the one that did not act last. This table is the
// single source of truth for liveness; every one of the nine combinations
// is spelled out.
func resolve(last, previous status, clientSpokeLast bool) verdict {
	switch last {
	case statusSuccess:
		switch previous {
		case statusSuccess:
			return verdictSuccess
		case statusRetry:
			// Let the other endpoint finish the phase.
			return verdictRetry
		case statusError:
			// The actor succeeded after its peer already errored.
			return verdictInternalError
		}
	case statusRetry:
		switch previous {
		case statusRetry:
			return verdictRetry
		case statusSuccess, statusError:
			// The actor is waiting for input that will never arrive:
			// its peer already finished or gave up.
			return verdictInternalError
		}
	case statusError:
		switch previous {
		case statusSuccess:
			// Only the actor failed.
			if clientSpokeLast {
				return verdictClientError
			}
			return verdictServerError
		case statusRetry:
			// We errored; let the peer run on and (presumably) fail.
			return verdictRetry
		case statusError:
			// Both errored. Attribute the failure to the endpoint that
			// errored first, i.e. not the one that spoke last.
			if clientSpokeLast {
				return verdictServerError
			}
			return verdictClientError
		}
	}
	return verdictInternalError
}
