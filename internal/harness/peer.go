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

import (
	"errors"

	"github.com/JESU20950/tlsharness/handshake"
	"github.com/JESU20950/tlsharness/internal/engine"
)

// Engine is the protocol-engine handle the harness drives. The concrete
// implementation lives in internal/engine; tests substitute scripted fakes.
type Engine interface {
	Handshake() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Shutdown() error

	Version() uint16
	Resumed() bool
	NPN() string
	ALPN() string
	Session() *handshake.Session
}

// peerBufferSize is each endpoint's read and write buffer size.
const peerBufferSize = 64 * 1024

// peer wraps one endpoint's engine handle, its buffers and byte counters,
// and its per-step status.
type peer struct {
	name     string
	engine   Engine
	writeBuf []byte
	readBuf  []byte

	bytesToWrite int
	bytesToRead  int

	status status
}

func newPeer(name string, eng Engine, appDataSize int) *peer {
	return &peer{
		name:         name,
		engine:       eng,
		writeBuf:     make([]byte, peerBufferSize),
		readBuf:      make([]byte, peerBufferSize),
		bytesToWrite: appDataSize,
		bytesToRead:  appDataSize,
		status:       statusRetry,
	}
}

// step executes one phase step. Stepping a peer that is not in Retry is a
// scheduler bug and aborts the run.
func (p *peer) step(ph phase) {
	if p.status != statusRetry {
		panic("harness: step on a peer not in retry state")
	}
	switch ph {
	case phaseHandshake:
		p.handshakeStep()
	case phaseAppData:
		p.appDataStep()
	case phaseShutdown:
		p.shutdownStep()
	default:
		panic("harness: step in terminal phase")
	}
}

func (p *peer) handshakeStep() {
	switch err := p.engine.Handshake(); {
	case err == nil:
		p.status = statusSuccess
	case errors.Is(err, engine.ErrWantRead):
		// Stay in retry; the peer must speak next.
	default:
		p.status = statusError
	}
}

// appDataStep reads everything currently available, then writes at most one
// write-buffer's worth of pending bytes. The phase succeeds only once both
// counters reach zero.
func (p *peer) appDataStep() {
	for p.bytesToRead > 0 {
		n, err := p.engine.Read(p.readBuf)
		if errors.Is(err, engine.ErrWantRead) {
			// No more data for now; continue with the write.
			break
		}
		if err != nil {
			p.status = statusError
			return
		}
		if n > p.bytesToRead {
			// More data arrived than was ever sent our way.
			p.status = statusError
			return
		}
		p.bytesToRead -= n
	}

	writeBytes := min(p.bytesToWrite, len(p.writeBuf))
	if writeBytes > 0 {
		n, err := p.engine.Write(p.writeBuf[:writeBytes])
		if err != nil || n != writeBytes {
			// A short write on the non-blocking in-memory transport
			// must never happen.
			p.status = statusError
			return
		}
		p.bytesToWrite -= n
	}

	if p.bytesToWrite == 0 && p.bytesToRead == 0 {
		p.status = statusSuccess
	}
}

func (p *peer) shutdownStep() {
	switch err := p.engine.Shutdown(); {
	case err == nil:
		p.status = statusSuccess
	case errors.Is(err, engine.ErrWantRead):
		// Waiting for the peer's close signal.
	default:
		p.status = statusError
	}
}
