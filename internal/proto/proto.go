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

// Package proto implements the application-protocol candidate-list wire
// codec and the two selection schemes used during negotiation.
package proto

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoOverlap reports that the server-preference scheme found no protocol
// supported by both sides.
var ErrNoOverlap = errors.New("proto: no overlapping protocol")

// EncodeList converts a comma-separated candidate list such as "h2,http/1.1"
// into the TLS wire form: each entry preceded by a single length byte.
//
//	"foo"     => 3 f o o
//	"foo,bar" => 3 f o o 3 b a r
//
// Empty entries are a configuration error.
func EncodeList(protos string) ([]byte, error) {
	out := make([]byte, 0, len(protos)+1)
	for _, entry := range strings.Split(protos, ",") {
		if len(entry) == 0 {
			return nil, fmt.Errorf("proto: empty entry in list %q", protos)
		}
		if len(entry) > 255 {
			return nil, fmt.Errorf("proto: entry %q exceeds one length byte", entry)
		}
		out = append(out, byte(len(entry)))
		out = append(out, entry...)
	}
	return out, nil
}

// DecodeList parses the wire form back into the ordered candidate list.
func DecodeList(wire []byte) ([]string, error) {
	var out []string
	for i := 0; i < len(wire); {
		n := int(wire[i])
		if n == 0 {
			return nil, errors.New("proto: zero-length entry")
		}
		i++
		if i+n > len(wire) {
			return nil, errors.New("proto: truncated entry")
		}
		out = append(out, string(wire[i:i+n]))
		i += n
	}
	return out, nil
}

// SelectNextProto picks the first entry of preferred that also appears in
// supported. When there is no overlap it falls back to the first entry of
// supported and reports overlap=false; deciding whether that is fatal is up
// to the scheme.
func SelectNextProto(preferred, supported []string) (string, bool) {
	for _, p := range preferred {
		for _, s := range supported {
			if p == s {
				return p, true
			}
		}
	}
	if len(supported) == 0 {
		return "", false
	}
	return supported[0], false
}

// SelectClientPreference is scheme 1: the client selects the first protocol
// the server advertised that it also supports, falling back to the first
// entry of its own list. The fallback is not an error.
func SelectClientPreference(serverAdvertised, clientOwn []string) string {
	selected, _ := SelectNextProto(serverAdvertised, clientOwn)
	return selected
}

// SelectServerPreference is scheme 2: the server selects its own most
// preferred protocol that the client advertised. No overlap is fatal and
// the extension must be rejected outright.
func SelectServerPreference(serverOwn, clientAdvertised []string) (string, error) {
	selected, overlap := SelectNextProto(serverOwn, clientAdvertised)
	if !overlap {
		return "", ErrNoOverlap
	}
	return selected, nil
}
