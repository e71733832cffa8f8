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

// Package handshake defines the configuration and outcome types shared by
// the in-memory handshake harness and its callers.
package handshake

// Protocol versions the simulated engine can negotiate. The values match
// the TLS wire encoding so outcomes read naturally in logs.
const (
	VersionTLS12 uint16 = 0x0303
	VersionTLS13 uint16 = 0x0304
)

// Mode selects between a single handshake and a resumption pair.
type Mode int

const (
	ModeSimple Mode = iota
	ModeResume
)

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "Simple"
	case ModeResume:
		return "Resume"
	default:
		return "Unknown"
	}
}

// Result is the overall classification of a harness run.
type Result int

const (
	ResultSuccess Result = iota
	ResultClientFail
	ResultServerFail
	ResultInternalError
	// ResultFirstHandshakeFailed is only produced in resume mode, when the
	// initial handshake does not succeed and the resumption run is skipped.
	ResultFirstHandshakeFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultClientFail:
		return "ClientFail"
	case ResultServerFail:
		return "ServerFail"
	case ResultInternalError:
		return "InternalError"
	case ResultFirstHandshakeFailed:
		return "FirstHandshakeFailed"
	default:
		return "Unknown"
	}
}

// ServerName identifies which server configuration a connection selected,
// or which name the client advertises.
type ServerName int

const (
	ServerNameNone ServerName = iota
	ServerNameServer1
	ServerNameServer2
	// ServerNameInvalid is a client-side setting: advertise a name neither
	// server configuration recognizes.
	ServerNameInvalid
)

func (n ServerName) String() string {
	switch n {
	case ServerNameNone:
		return "None"
	case ServerNameServer1:
		return "server1"
	case ServerNameServer2:
		return "server2"
	case ServerNameInvalid:
		return "invalid"
	default:
		return "Unknown"
	}
}

// ServerNameMode is the server's routing policy for an advertised name.
type ServerNameMode int

const (
	ServerNameModeNone ServerNameMode = iota
	// ServerNameModeIgnoreMismatch continues against the primary
	// configuration without acknowledging an unrecognized name.
	ServerNameModeIgnoreMismatch
	// ServerNameModeRejectMismatch aborts the handshake with a fatal
	// unrecognized_name alert.
	ServerNameModeRejectMismatch
)

func (m ServerNameMode) String() string {
	switch m {
	case ServerNameModeNone:
		return "None"
	case ServerNameModeIgnoreMismatch:
		return "IgnoreMismatch"
	case ServerNameModeRejectMismatch:
		return "RejectMismatch"
	default:
		return "Unknown"
	}
}

// VerifyMode overrides the client's certificate verification for
// deterministic outcome testing.
type VerifyMode int

const (
	VerifyModeDefault VerifyMode = iota
	VerifyModeAcceptAll
	VerifyModeRejectAll
)

func (m VerifyMode) String() string {
	switch m {
	case VerifyModeDefault:
		return "Default"
	case VerifyModeAcceptAll:
		return "AcceptAll"
	case VerifyModeRejectAll:
		return "RejectAll"
	default:
		return "Unknown"
	}
}

// TicketMode configures the server's session-ticket key callback.
type TicketMode int

const (
	TicketModeNormal TicketMode = iota
	// TicketModeBroken always reports failure, to exercise error paths.
	TicketModeBroken
	// TicketModeDoNotCall trips an observable flag and fails if ever
	// invoked. The configurator assigns it to the secondary configuration
	// to prove an SNI switch never moves ticket handling off the primary.
	TicketModeDoNotCall
)

func (m TicketMode) String() string {
	switch m {
	case TicketModeNormal:
		return "Normal"
	case TicketModeBroken:
		return "Broken"
	case TicketModeDoNotCall:
		return "DoNotCall"
	default:
		return "Unknown"
	}
}

// Config holds one role's negotiation settings. A Config is immutable once
// a run starts. Fields that only apply to one role are ignored on the other.
type Config struct {
	// MaxVersion caps the negotiated protocol version. Zero means
	// VersionTLS13.
	MaxVersion uint16

	// ServerName is the name the client advertises. ServerNameNone omits
	// the extension.
	ServerName ServerName

	// ServerNameMode is the server's routing policy.
	ServerNameMode ServerNameMode

	// NPNProtocols and ALPNProtocols are comma-separated candidate lists,
	// e.g. "h2,http/1.1". Empty means the extension is not configured.
	// No entry may be empty.
	NPNProtocols  string
	ALPNProtocols string

	// Verify is the client's certificate-verification override.
	Verify VerifyMode

	// Ticket is the server's session-ticket key callback mode.
	Ticket TicketMode
}

// Session is a reusable handle extracted from a successful run, fed back
// into a later run to attempt resumption.
type Session struct {
	Version uint16
	Ticket  []byte
}

// HasTicket reports whether the session carries a non-empty ticket.
func (s *Session) HasTicket() bool {
	return s != nil && len(s.Ticket) > 0
}

// Outcome is the immutable result of one harness invocation.
type Outcome struct {
	Result Result

	// Alert codes observed by each side's event record; zero means no
	// alert. The "received" fields report the alert the other side saw,
	// so ServerAlertReceived is the server's alert as received by the
	// client.
	ClientAlertSent     uint8
	ClientAlertReceived uint8
	ServerAlertSent     uint8
	ServerAlertReceived uint8

	ClientVersion uint16
	ServerVersion uint16

	// ServerName is the server-configuration role the connection actually
	// selected.
	ServerName ServerName

	// SessionTicket reports whether the client ended up holding a
	// non-empty session ticket.
	SessionTicket bool

	// TicketDoNotCall is true if a TicketModeDoNotCall callback was
	// invoked. It must stay false on every well-behaved run.
	TicketDoNotCall bool

	ClientNPN  string
	ServerNPN  string
	ClientALPN string
	ServerALPN string

	ClientResumed bool
	ServerResumed bool

	// Session is the reusable handle from the client side, when the
	// caller asked for one.
	Session *Session
}
