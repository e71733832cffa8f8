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

package handshake

// TLS alert levels (RFC 5246, section 7.2).
const (
	AlertLevelWarning uint8 = 1
	AlertLevelFatal   uint8 = 2
)

// TLS alert descriptions the harness can observe in outcomes.
const (
	AlertCloseNotify           uint8 = 0
	AlertHandshakeFailure      uint8 = 40
	AlertBadCertificate        uint8 = 42
	AlertInternalError         uint8 = 80
	AlertUnrecognizedName      uint8 = 112
	AlertNoApplicationProtocol uint8 = 120
)
