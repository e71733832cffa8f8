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

// Package engine implements the simulated protocol engine driven by the
// harness. It exchanges structured handshake messages over the in-memory
// transport and evaluates the installed negotiation policies; there is no
// cryptography and no real record layer.
package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/JESU20950/tlsharness/handshake"
	"github.com/JESU20950/tlsharness/internal/membio"
	"github.com/JESU20950/tlsharness/internal/proto"
)

// ErrWantRead reports that the engine needs more input from the peer
// before the current operation can make progress.
var ErrWantRead = errors.New("engine: want read")

// Role is the endpoint's side of the connection.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// Events is the per-endpoint observation record. The harness owns one
// instance per Conn and reads it back after termination; keeping it an
// explicit field rules out cross-endpoint attribution mistakes.
type Events struct {
	AlertSent       uint8
	AlertReceived   uint8
	ServerName      handshake.ServerName
	TicketDoNotCall bool
}

type connState int

const (
	stateClientStart connState = iota
	stateClientAwaitServerHello
	stateServerAwaitClientHello
	stateServerAwaitFinished
	stateEstablished
)

// cfgData is one configuration with its candidate lists pre-parsed by the
// configurator.
type cfgData struct {
	raw  *handshake.Config
	npn  []string
	alpn []string
}

func newCfgData(cfg *handshake.Config) (*cfgData, error) {
	d := &cfgData{raw: cfg}
	var err error
	if cfg.NPNProtocols != "" {
		wire, e := proto.EncodeList(cfg.NPNProtocols)
		if e != nil {
			return nil, e
		}
		if d.npn, err = proto.DecodeList(wire); err != nil {
			return nil, err
		}
	}
	if cfg.ALPNProtocols != "" {
		wire, e := proto.EncodeList(cfg.ALPNProtocols)
		if e != nil {
			return nil, e
		}
		if d.alpn, err = proto.DecodeList(wire); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *cfgData) maxVersion() uint16 {
	if d.raw.MaxVersion == 0 {
		return handshake.VersionTLS13
	}
	return d.raw.MaxVersion
}

// Options configures one endpoint's engine.
type Options struct {
	Role Role

	// Config is the endpoint's primary configuration. Secondary is the
	// alternate server configuration selected by server-name routing; nil
	// on clients and on servers without routing.
	Config    *handshake.Config
	Secondary *handshake.Config

	// Session is an inbound handle for a client resumption attempt.
	Session *handshake.Session

	Reader, Writer *membio.Channel
	Events         *Events
}

// Conn is one endpoint's live protocol state.
type Conn struct {
	role      Role
	cfg       *cfgData // primary; also the session config for ticket ops
	secondary *cfgData
	active    *cfgData // switched to secondary by server-name routing

	session *handshake.Session

	rd, wr *membio.Channel
	events *Events

	state connState
	in    []byte // undelivered wire bytes, reassembled into frames
	appIn []byte // decoded application data awaiting Read

	version    uint16
	resumed    bool
	npn        string
	alpn       string
	newSession *handshake.Session

	sentClose bool
	recvClose bool
}

// New validates the configuration and builds an endpoint engine. The
// secondary configuration's ticket mode is forced to DoNotCall: ticket
// handling must stay on the primary even after a server-name switch, and
// the flag makes any violation observable.
func New(opts Options) (*Conn, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: nil config")
	}
	if opts.Reader == nil || opts.Writer == nil {
		return nil, errors.New("engine: missing transport channels")
	}
	if opts.Events == nil {
		return nil, errors.New("engine: missing events record")
	}

	cfg, err := newCfgData(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("engine: %s primary config: %w", opts.Role, err)
	}

	c := &Conn{
		role:    opts.Role,
		cfg:     cfg,
		active:  cfg,
		session: opts.Session,
		rd:      opts.Reader,
		wr:      opts.Writer,
		events:  opts.Events,
	}

	if opts.Secondary != nil {
		sec := *opts.Secondary
		sec.Ticket = handshake.TicketModeDoNotCall
		if c.secondary, err = newCfgData(&sec); err != nil {
			return nil, fmt.Errorf("engine: %s secondary config: %w", opts.Role, err)
		}
	}

	if opts.Role == RoleClient {
		c.state = stateClientStart
	} else {
		c.state = stateServerAwaitClientHello
	}
	return c, nil
}

// Handshake drives the handshake one step. It returns nil on completion,
// ErrWantRead when the peer must speak next, and any other error on a
// fatal condition.
func (c *Conn) Handshake() error {
	switch c.state {
	case stateClientStart:
		return c.clientStart()
	case stateClientAwaitServerHello:
		return c.clientProcessServerHello()
	case stateServerAwaitClientHello:
		return c.serverProcessClientHello()
	case stateServerAwaitFinished:
		return c.serverProcessFinished()
	case stateEstablished:
		return nil
	default:
		return fmt.Errorf("engine: handshake in unexpected state %d", c.state)
	}
}

func (c *Conn) clientStart() error {
	msg := &clientHello{version: c.cfg.maxVersion()}

	if c.cfg.raw.ServerName != handshake.ServerNameNone {
		msg.name = c.cfg.raw.ServerName.String()
	}
	if len(c.cfg.alpn) > 0 {
		wire, err := proto.EncodeList(c.cfg.raw.ALPNProtocols)
		if err != nil {
			return err
		}
		msg.alpn = wire
	}
	if c.session.HasTicket() {
		msg.ticket = c.session.Ticket
	}

	if err := c.sendFrame(frameClientHello, msg.encode()); err != nil {
		return err
	}
	c.state = stateClientAwaitServerHello
	return ErrWantRead
}

func (c *Conn) clientProcessServerHello() error {
	f, err := c.expectFrame()
	if err != nil {
		return err
	}
	if f.typ != frameServerHello {
		return fmt.Errorf("engine: client expected server hello, got frame %d", f.typ)
	}
	sh, err := parseServerHello(f.payload)
	if err != nil {
		return err
	}
	if sh.version < handshake.VersionTLS12 || sh.version > c.cfg.maxVersion() {
		return c.fatalAlert(handshake.AlertHandshakeFailure,
			fmt.Errorf("engine: unacceptable version %#04x", sh.version))
	}
	c.version = sh.version
	c.resumed = sh.resumed && c.session != nil

	// The server only echoes a selection for an extension we offered.
	if sh.alpn != "" && len(c.cfg.alpn) == 0 {
		return fmt.Errorf("engine: unsolicited protocol selection %q", sh.alpn)
	}
	c.alpn = sh.alpn

	// Certificate verification does not run on a resumed session.
	if !c.resumed && c.cfg.raw.Verify == handshake.VerifyModeRejectAll {
		return c.fatalAlert(handshake.AlertBadCertificate,
			errors.New("engine: certificate verification rejected"))
	}

	if len(sh.npn) > 0 && len(c.cfg.npn) > 0 {
		advertised, err := proto.DecodeList(sh.npn)
		if err != nil {
			return err
		}
		c.npn = proto.SelectClientPreference(advertised, c.cfg.npn)
	}

	switch {
	case c.resumed:
		c.newSession = c.session
	case len(sh.ticket) > 0:
		c.newSession = &handshake.Session{Version: c.version, Ticket: sh.ticket}
	default:
		c.newSession = &handshake.Session{Version: c.version}
	}

	if err := c.sendFrame(frameFinished, (&finished{npn: c.npn}).encode()); err != nil {
		return err
	}
	c.state = stateEstablished
	return nil
}

func (c *Conn) serverProcessClientHello() error {
	f, err := c.expectFrame()
	if err != nil {
		return err
	}
	if f.typ != frameClientHello {
		return fmt.Errorf("engine: server expected client hello, got frame %d", f.typ)
	}
	ch, err := parseClientHello(f.payload)
	if err != nil {
		return err
	}

	c.version = min(ch.version, c.cfg.maxVersion())
	if c.version < handshake.VersionTLS12 {
		return c.fatalAlert(handshake.AlertHandshakeFailure,
			fmt.Errorf("engine: unacceptable version %#04x", ch.version))
	}

	msg := &serverHello{version: c.version}

	if c.cfg.raw.ServerNameMode != handshake.ServerNameModeNone {
		ack, err := c.routeServerName(ch.name)
		if err != nil {
			return err
		}
		msg.nameAck = ack
	}

	// Ticket operations always run against the primary (session)
	// configuration, even after a server-name switch.
	if len(ch.ticket) > 0 {
		ver, ok := acceptTicket(c.cfg.raw.Ticket, c.events, ch.ticket)
		if ok && ver == c.version {
			c.resumed = true
			msg.resumed = true
		}
	}

	if len(c.active.alpn) > 0 && len(ch.alpn) > 0 {
		advertised, err := proto.DecodeList(ch.alpn)
		if err != nil {
			return err
		}
		selected, err := proto.SelectServerPreference(c.active.alpn, advertised)
		if err != nil {
			return c.fatalAlert(handshake.AlertNoApplicationProtocol, err)
		}
		c.alpn = selected
		msg.alpn = selected
	}

	if len(c.active.npn) > 0 {
		wire, err := proto.EncodeList(c.active.raw.NPNProtocols)
		if err != nil {
			return err
		}
		msg.npn = wire
	}

	if !c.resumed {
		ticket, err := issueTicket(c.cfg.raw.Ticket, c.events, c.version)
		if err != nil {
			return c.fatalAlert(handshake.AlertInternalError, err)
		}
		msg.ticket = ticket
	}

	if err := c.sendFrame(frameServerHello, msg.encode()); err != nil {
		return err
	}
	c.state = stateServerAwaitFinished
	return ErrWantRead
}

// routeServerName applies the server-name routing policy and records the
// selected role. A secondary match switches the active configuration
// bundle, carrying the connection options of the secondary with it.
func (c *Conn) routeServerName(name string) (ack bool, err error) {
	switch {
	case name == "":
		c.events.ServerName = handshake.ServerNameServer1
		return false, nil
	case name == handshake.ServerNameServer2.String() && c.secondary != nil:
		c.active = c.secondary
		c.events.ServerName = handshake.ServerNameServer2
		return true, nil
	case name == handshake.ServerNameServer1.String():
		c.events.ServerName = handshake.ServerNameServer1
		return true, nil
	case c.cfg.raw.ServerNameMode == handshake.ServerNameModeIgnoreMismatch:
		c.events.ServerName = handshake.ServerNameServer1
		return false, nil
	default:
		return false, c.fatalAlert(handshake.AlertUnrecognizedName,
			fmt.Errorf("engine: unrecognized server name %q", name))
	}
}

func (c *Conn) serverProcessFinished() error {
	f, err := c.expectFrame()
	if err != nil {
		return err
	}
	if f.typ != frameFinished {
		return fmt.Errorf("engine: server expected finished, got frame %d", f.typ)
	}
	fin, err := parseFinished(f.payload)
	if err != nil {
		return err
	}
	c.npn = fin.npn
	c.state = stateEstablished
	return nil
}

// Read drains buffered application data into p. It returns ErrWantRead
// when no data is available yet and io.EOF once the peer's close_notify
// has been seen.
func (c *Conn) Read(p []byte) (int, error) {
	if c.recvClose {
		return 0, io.EOF
	}
	for len(c.appIn) == 0 {
		f, err := c.nextFrame()
		if err != nil {
			return 0, err
		}
		switch f.typ {
		case frameAppData:
			c.appIn = append(c.appIn, f.payload...)
		case frameAlert:
			if err := c.consumeAlert(f.payload); err != nil {
				return 0, err
			}
			return 0, io.EOF
		default:
			return 0, fmt.Errorf("engine: unexpected frame %d in application data", f.typ)
		}
	}
	n := copy(p, c.appIn)
	rest := copy(c.appIn, c.appIn[n:])
	c.appIn = c.appIn[:rest]
	return n, nil
}

// Write sends p as application-data frames of at most one record each.
// The whole buffer is framed up front and handed to the transport in a
// single all-or-nothing write, so a short write cannot happen; a full
// channel is reported as an error rather than a partial transfer.
func (c *Conn) Write(p []byte) (int, error) {
	var wire []byte
	for off := 0; off < len(p); off += maxRecordLen {
		end := min(off+maxRecordLen, len(p))
		f, err := encodeFrame(frameAppData, p[off:end])
		if err != nil {
			return 0, err
		}
		wire = append(wire, f...)
	}
	if _, err := c.wr.Write(wire); err != nil {
		return 0, fmt.Errorf("engine: %s write failed: %w", c.role, err)
	}
	return len(p), nil
}

// Shutdown drives the bidirectional close. The first step sends our
// close_notify; completion requires the peer's close_notify as well.
func (c *Conn) Shutdown() error {
	if !c.sentClose {
		m := &alert{level: handshake.AlertLevelWarning, desc: handshake.AlertCloseNotify}
		if err := c.sendFrame(frameAlert, m.encode()); err != nil {
			return err
		}
		c.sentClose = true
	}
	for !c.recvClose {
		f, err := c.nextFrame()
		if errors.Is(err, ErrWantRead) {
			return ErrWantRead
		}
		if err != nil {
			return err
		}
		if f.typ != frameAlert {
			return fmt.Errorf("engine: unexpected frame %d during shutdown", f.typ)
		}
		if err := c.consumeAlert(f.payload); err != nil {
			return err
		}
	}
	return nil
}

// Version returns the negotiated protocol version.
func (c *Conn) Version() uint16 { return c.version }

// Resumed reports whether this endpoint resumed a previous session.
func (c *Conn) Resumed() bool { return c.resumed }

// NPN returns the protocol negotiated by the client-preference scheme.
func (c *Conn) NPN() string { return c.npn }

// ALPN returns the protocol negotiated by the server-preference scheme.
func (c *Conn) ALPN() string { return c.alpn }

// Session returns the client's reusable session handle, nil on servers
// and on clients whose handshake never completed.
func (c *Conn) Session() *handshake.Session { return c.newSession }

// sendFrame writes one whole frame. The in-memory channels are sized so a
// well-behaved run never fills them; a blocked write is a contract
// violation, not a retry condition.
func (c *Conn) sendFrame(typ byte, payload []byte) error {
	wire, err := encodeFrame(typ, payload)
	if err != nil {
		return err
	}
	if _, err := c.wr.Write(wire); err != nil {
		return fmt.Errorf("engine: %s write failed: %w", c.role, err)
	}
	return nil
}

// pump moves every available byte from the transport into the reassembly
// buffer.
func (c *Conn) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := c.rd.Read(buf)
		if err != nil {
			return
		}
		c.in = append(c.in, buf[:n]...)
	}
}

// nextFrame returns the next complete inbound frame, or ErrWantRead when
// the peer has not produced one yet.
func (c *Conn) nextFrame() (frame, error) {
	c.pump()
	f, rest, ok := splitFrame(c.in)
	if !ok {
		return frame{}, ErrWantRead
	}
	c.in = rest
	return f, nil
}

// expectFrame is nextFrame for handshake states: an inbound alert is
// recorded against this endpoint and terminates the handshake.
func (c *Conn) expectFrame() (frame, error) {
	f, err := c.nextFrame()
	if err != nil {
		return frame{}, err
	}
	if f.typ == frameAlert {
		if err := c.consumeAlert(f.payload); err != nil {
			return frame{}, err
		}
		return frame{}, errors.New("engine: peer closed during handshake")
	}
	return f, nil
}

// consumeAlert records an inbound alert in this endpoint's events. A
// close_notify is clean-shutdown signalling and deliberately kept out of
// the observation record.
func (c *Conn) consumeAlert(payload []byte) error {
	a, err := parseAlert(payload)
	if err != nil {
		return err
	}
	if a.level == handshake.AlertLevelWarning && a.desc == handshake.AlertCloseNotify {
		c.recvClose = true
		return nil
	}
	c.events.AlertReceived = a.desc
	return fmt.Errorf("engine: %s received fatal alert %d", c.role, a.desc)
}

// fatalAlert sends a fatal alert, records it, and returns cause.
func (c *Conn) fatalAlert(desc uint8, cause error) error {
	c.events.AlertSent = desc
	m := &alert{level: handshake.AlertLevelFatal, desc: desc}
	if err := c.sendFrame(frameAlert, m.encode()); err != nil {
		return err
	}
	return cause
}
