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

package engine

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/JESU20950/tlsharness/handshake"
)

// Ticket key material is fixed so a ticket issued under one run can be
// decrypted and validated under a later run with the same configuration.
var ticketKeyName = []byte("tlsharness-tkey1")

// errTicketKey reports a failing ticket key callback during issuance.
var errTicketKey = errors.New("engine: session ticket key callback failed")

// issueTicket runs the session-ticket key callback in encrypt direction.
// A failing callback aborts ticket construction, which is fatal to the
// server's handshake.
func issueTicket(mode handshake.TicketMode, events *Events, version uint16) ([]byte, error) {
	switch mode {
	case handshake.TicketModeNormal:
		ticket := make([]byte, 0, len(ticketKeyName)+2)
		ticket = append(ticket, ticketKeyName...)
		ticket = binary.BigEndian.AppendUint16(ticket, version)
		return ticket, nil
	case handshake.TicketModeBroken:
		return nil, errTicketKey
	case handshake.TicketModeDoNotCall:
		events.TicketDoNotCall = true
		return nil, errTicketKey
	default:
		return nil, errTicketKey
	}
}

// acceptTicket runs the callback in decrypt direction. A failing callback
// or unknown key name is not fatal: the server falls back to a full
// handshake.
func acceptTicket(mode handshake.TicketMode, events *Events, ticket []byte) (version uint16, ok bool) {
	switch mode {
	case handshake.TicketModeBroken:
		return 0, false
	case handshake.TicketModeDoNotCall:
		events.TicketDoNotCall = true
		return 0, false
	}
	if len(ticket) != len(ticketKeyName)+2 {
		return 0, false
	}
	if !bytes.Equal(ticket[:len(ticketKeyName)], ticketKeyName) {
		return 0, false
	}
	return binary.BigEndian.Uint16(ticket[len(ticketKeyName):]), true
}
