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

// Package membio provides the bounded, non-blocking, in-memory byte
// channels the harness uses in place of real sockets. Two channels form a
// duplex pair shared by the two endpoints of one run.
package membio

import "errors"

// ErrWouldBlock reports that a read found no data or a write found
// insufficient free space. Channels never block the caller.
var ErrWouldBlock = errors.New("membio: operation would block")

// DefaultCapacity comfortably holds one peer write-buffer plus framing.
const DefaultCapacity = 256 * 1024

// Channel is a fixed-capacity unidirectional byte queue.
type Channel struct {
	buf      []byte
	capacity int
	released bool
}

func newChannel(capacity int) *Channel {
	return &Channel{buf: make([]byte, 0, capacity), capacity: capacity}
}

// Len returns the number of buffered bytes.
func (c *Channel) Len() int {
	c.check()
	return len(c.buf)
}

// Write transfers all of p or none of it. A write that does not fit in the
// remaining capacity transfers zero bytes and returns ErrWouldBlock;
// partial writes never happen.
func (c *Channel) Write(p []byte) (int, error) {
	c.check()
	if len(p) > c.capacity-len(c.buf) {
		return 0, ErrWouldBlock
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

// Read copies up to len(p) buffered bytes into p. An empty channel returns
// ErrWouldBlock rather than blocking.
func (c *Channel) Read(p []byte) (int, error) {
	c.check()
	if len(c.buf) == 0 {
		return 0, ErrWouldBlock
	}
	n := copy(p, c.buf)
	rest := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:rest]
	return n, nil
}

func (c *Channel) check() {
	if c.released {
		panic("membio: channel used after release")
	}
}

// Pair is a duplex channel pair under shared ownership. Each endpoint
// attaches a reference; the buffers are torn down when the last reference
// is released, and any later use is a programming error.
type Pair struct {
	ClientToServer *Channel
	ServerToClient *Channel
	refs           int
}

// NewPair creates a duplex pair with one reference held by the caller.
func NewPair(capacity int) *Pair {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pair{
		ClientToServer: newChannel(capacity),
		ServerToClient: newChannel(capacity),
		refs:           1,
	}
}

// Attach adds a reference and returns the pair for chaining.
func (p *Pair) Attach() *Pair {
	if p.refs <= 0 {
		panic("membio: attach to released pair")
	}
	p.refs++
	return p
}

// Release drops one reference. The last release empties both channels and
// marks them unusable.
func (p *Pair) Release() {
	if p.refs <= 0 {
		panic("membio: release of released pair")
	}
	p.refs--
	if p.refs == 0 {
		p.ClientToServer.buf = nil
		p.ServerToClient.buf = nil
		p.ClientToServer.released = true
		p.ServerToClient.released = true
	}
}

// Released reports whether the pair has been fully torn down.
func (p *Pair) Released() bool {
	return p.refs == 0
}
