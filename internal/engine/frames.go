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
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire framing: a 1-byte type, a 2-byte big-endian payload length, then the
// payload. Frames are always written whole, so a reader that consumes every
// available byte only ever sees a partial frame at the tail.
const (
	frameClientHello byte = iota + 1
	frameServerHello
	frameFinished
	frameAlert
	frameAppData
)

const frameHeaderLen = 3

// maxFrameLen bounds a payload to what the 2-byte length can carry.
const maxFrameLen = 1<<16 - 1

// maxRecordLen is the largest application-data payload carried per frame,
// matching the TLS plaintext record limit.
const maxRecordLen = 1 << 14

type frame struct {
	typ     byte
	payload []byte
}

func encodeFrame(typ byte, payload []byte) ([]byte, error) {
	if len(payload) > maxFrameLen {
		return nil, fmt.Errorf("engine: payload of %d bytes exceeds frame limit", len(payload))
	}
	out := make([]byte, frameHeaderLen+len(payload))
	out[0] = typ
	binary.BigEndian.PutUint16(out[1:3], uint16(len(payload)))
	copy(out[frameHeaderLen:], payload)
	return out, nil
}

// splitFrame extracts one complete frame from in, returning the remainder.
// ok is false while the tail holds less than a whole frame.
func splitFrame(in []byte) (f frame, rest []byte, ok bool) {
	if len(in) < frameHeaderLen {
		return frame{}, in, false
	}
	n := int(binary.BigEndian.Uint16(in[1:3]))
	if len(in) < frameHeaderLen+n {
		return frame{}, in, false
	}
	return frame{typ: in[0], payload: in[frameHeaderLen : frameHeaderLen+n]},
		in[frameHeaderLen+n:], true
}

// fieldWriter accumulates a frame payload field by field.
type fieldWriter struct {
	b []byte
}

func (w *fieldWriter) u8(v uint8)   { w.b = append(w.b, v) }
func (w *fieldWriter) u16(v uint16) { w.b = binary.BigEndian.AppendUint16(w.b, v) }

func (w *fieldWriter) bytes8(p []byte) {
	w.u8(uint8(len(p)))
	w.b = append(w.b, p...)
}

func (w *fieldWriter) bytes16(p []byte) {
	w.u16(uint16(len(p)))
	w.b = append(w.b, p...)
}

// fieldReader consumes a frame payload field by field, deferring error
// handling to a single check at the end.
type fieldReader struct {
	b   []byte
	err error
}

var errShortPayload = errors.New("engine: truncated frame payload")

func (r *fieldReader) u8() uint8 {
	if r.err != nil || len(r.b) < 1 {
		r.fail()
		return 0
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil || len(r.b) < 2 {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint16(r.b[:2])
	r.b = r.b[2:]
	return v
}

func (r *fieldReader) bytes8() []byte {
	n := int(r.u8())
	return r.take(n)
}

func (r *fieldReader) bytes16() []byte {
	n := int(r.u16())
	return r.take(n)
}

func (r *fieldReader) take(n int) []byte {
	if r.err != nil || len(r.b) < n {
		r.fail()
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *fieldReader) fail() {
	if r.err == nil {
		r.err = errShortPayload
	}
}

func (r *fieldReader) done() error {
	if r.err != nil {
		return r.err
	}
	if len(r.b) != 0 {
		return errors.New("engine: trailing bytes in frame payload")
	}
	return nil
}

type clientHello struct {
	version uint16
	name    string
	alpn    []byte // candidate list in wire form, empty if not configured
	ticket  []byte // resumption ticket, empty if none
}

func (m *clientHello) encode() []byte {
	var w fieldWriter
	w.u16(m.version)
	w.bytes8([]byte(m.name))
	w.bytes16(m.alpn)
	w.bytes16(m.ticket)
	return w.b
}

func parseClientHello(payload []byte) (*clientHello, error) {
	r := fieldReader{b: payload}
	m := &clientHello{
		version: r.u16(),
		name:    string(r.bytes8()),
		alpn:    r.bytes16(),
		ticket:  r.bytes16(),
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("engine: bad client hello: %w", err)
	}
	return m, nil
}

type serverHello struct {
	version  uint16
	nameAck  bool
	resumed  bool
	alpn     string // selected protocol, empty if none
	npn      []byte // advertised candidate list in wire form, empty if absent
	ticket   []byte // newly issued session ticket, empty if none
}

func (m *serverHello) encode() []byte {
	var w fieldWriter
	w.u16(m.version)
	w.u8(boolByte(m.nameAck))
	w.u8(boolByte(m.resumed))
	w.bytes8([]byte(m.alpn))
	w.bytes16(m.npn)
	w.bytes16(m.ticket)
	return w.b
}

func parseServerHello(payload []byte) (*serverHello, error) {
	r := fieldReader{b: payload}
	m := &serverHello{
		version: r.u16(),
		nameAck: r.u8() != 0,
		resumed: r.u8() != 0,
		alpn:    string(r.bytes8()),
		npn:     r.bytes16(),
		ticket:  r.bytes16(),
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("engine: bad server hello: %w", err)
	}
	return m, nil
}

type finished struct {
	npn string // the client's next-protocol selection, empty if none
}

func (m *finished) encode() []byte {
	var w fieldWriter
	w.bytes8([]byte(m.npn))
	return w.b
}

func parseFinished(payload []byte) (*finished, error) {
	r := fieldReader{b: payload}
	m := &finished{npn: string(r.bytes8())}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("engine: bad finished: %w", err)
	}
	return m, nil
}

type alert struct {
	level uint8
	desc  uint8
}

func (m *alert) encode() []byte {
	return []byte{m.level, m.desc}
}

func parseAlert(payload []byte) (*alert, error) {
	r := fieldReader{b: payload}
	m := &alert{level: r.u8(), desc: r.u8()}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("engine: bad alert: %w", err)
	}
	return m, nil
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
