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

package engine_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/JESU20950/tlsharness/handshake"
	"github.com/JESU20950/tlsharness/internal/engine"
	"github.com/JESU20950/tlsharness/internal/membio"
	"github.com/stretchr/testify/require"
)

type endpoints struct {
	client, server             *engine.Conn
	clientEvents, serverEvents *engine.Events
}

func newEndpoints(t *testing.T, serverCfg, clientCfg *handshake.Config, opts ...func(*engine.Options)) *endpoints {
	t.Helper()

	pair := membio.NewPair(membio.DefaultCapacity)
	t.Cleanup(pair.Release)

	e := &endpoints{
		clientEvents: &engine.Events{},
		serverEvents: &engine.Events{},
	}

	serverOpts := engine.Options{
		Role:   engine.RoleServer,
		Config: serverCfg,
		Reader: pair.ClientToServer,
		Writer: pair.ServerToClient,
		Events: e.serverEvents,
	}
	clientOpts := engine.Options{
		Role:   engine.RoleClient,
		Config: clientCfg,
		Reader: pair.ServerToClient,
		Writer: pair.ClientToServer,
		Events: e.clientEvents,
	}
	for _, o := range opts {
		o(&serverOpts)
		o(&clientOpts)
	}

	var err error
	e.server, err = engine.New(serverOpts)
	require.NoError(t, err)
	e.client, err = engine.New(clientOpts)
	require.NoError(t, err)
	return e
}

func TestHandshakeStepSequence(t *testing.T) {
	e := newEndpoints(t, &handshake.Config{}, &handshake.Config{})

	// Neither side can finish before the peer has spoken.
	require.ErrorIs(t, e.server.Handshake(), engine.ErrWantRead)

	require.ErrorIs(t, e.client.Handshake(), engine.ErrWantRead)
	require.ErrorIs(t, e.server.Handshake(), engine.ErrWantRead)
	require.NoError(t, e.client.Handshake())
	require.NoError(t, e.server.Handshake())

	require.Equal(t, handshake.VersionTLS13, e.client.Version())
	require.Equal(t, handshake.VersionTLS13, e.server.Version())
	require.False(t, e.client.Resumed())
	require.False(t, e.server.Resumed())

	// A completed handshake leaves a reusable session behind on the
	// client only.
	sess := e.client.Session()
	require.NotNil(t, sess)
	require.True(t, sess.HasTicket())
	require.Equal(t, handshake.VersionTLS13, sess.Version)
	require.Nil(t, e.server.Session())
}

func completeHandshake(t *testing.T, e *endpoints) {
	t.Helper()
	require.ErrorIs(t, e.client.Handshake(), engine.ErrWantRead)
	require.ErrorIs(t, e.server.Handshake(), engine.ErrWantRead)
	require.NoError(t, e.client.Handshake())
	require.NoError(t, e.server.Handshake())
}

func TestAlertAttribution(t *testing.T) {
	e := newEndpoints(t,
		&handshake.Config{},
		&handshake.Config{Verify: handshake.VerifyModeRejectAll})

	require.ErrorIs(t, e.client.Handshake(), engine.ErrWantRead)
	require.ErrorIs(t, e.server.Handshake(), engine.ErrWantRead)

	// The client rejects the certificate and sends the alert.
	require.Error(t, e.client.Handshake())
	require.Equal(t, handshake.AlertBadCertificate, e.clientEvents.AlertSent)
	require.Zero(t, e.clientEvents.AlertReceived)

	// The server records the inbound alert against its own events.
	require.Error(t, e.server.Handshake())
	require.Equal(t, handshake.AlertBadCertificate, e.serverEvents.AlertReceived)
	require.Zero(t, e.serverEvents.AlertSent)
}

func TestDoNotCallTicketCallback(t *testing.T) {
	e := newEndpoints(t,
		&handshake.Config{Ticket: handshake.TicketModeDoNotCall},
		&handshake.Config{})

	require.ErrorIs(t, e.client.Handshake(), engine.ErrWantRead)

	require.Error(t, e.server.Handshake())
	require.True(t, e.serverEvents.TicketDoNotCall)
	require.Equal(t, handshake.AlertInternalError, e.serverEvents.AlertSent)

	require.Error(t, e.client.Handshake())
	require.Equal(t, handshake.AlertInternalError, e.clientEvents.AlertReceived)
}

func TestAppDataAndShutdown(t *testing.T) {
	e := newEndpoints(t, &handshake.Config{}, &handshake.Config{})
	completeHandshake(t, e)

	// Large enough to span several records on the wire.
	payload := bytes.Repeat([]byte{0xa5}, 40000)
	n, err := e.client.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	got := make([]byte, 0, len(payload))
	buf := make([]byte, 4096)
	for len(got) < len(payload) {
		n, err := e.server.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	require.Equal(t, payload, got)

	// Nothing more on the wire yet.
	_, err = e.server.Read(buf)
	require.ErrorIs(t, err, engine.ErrWantRead)

	// Bidirectional close. The first caller blocks on the peer's
	// close_notify; the peer then completes in one step, and the
	// first caller's retry succeeds.
	require.ErrorIs(t, e.client.Shutdown(), engine.ErrWantRead)
	require.NoError(t, e.server.Shutdown())
	require.NoError(t, e.client.Shutdown())

	// After the peer's close_notify reads report end of stream, and
	// the close_notify never shows up as an observed alert.
	_, err = e.server.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, e.clientEvents.AlertReceived)
	require.Zero(t, e.serverEvents.AlertReceived)
}

func TestResumedHandshakeSkipsVerification(t *testing.T) {
	first := newEndpoints(t, &handshake.Config{}, &handshake.Config{})
	completeHandshake(t, first)
	sess := first.client.Session()
	require.True(t, sess.HasTicket())

	// Certificate rejection is configured but never consulted on a
	// resumed session.
	e := newEndpoints(t,
		&handshake.Config{},
		&handshake.Config{Verify: handshake.VerifyModeRejectAll},
		func(o *engine.Options) {
			if o.Role == engine.RoleClient {
				o.Session = sess
			}
		})
	completeHandshake(t, e)

	require.True(t, e.client.Resumed())
	require.True(t, e.server.Resumed())
	require.Same(t, sess, e.client.Session())
}

func TestSecondaryConfigTicketModeIsForced(t *testing.T) {
	e := newEndpoints(t,
		&handshake.Config{ServerNameMode: handshake.ServerNameModeIgnoreMismatch},
		&handshake.Config{ServerName: handshake.ServerNameServer2},
		func(o *engine.Options) {
			if o.Role == engine.RoleServer {
				o.Secondary = &handshake.Config{Ticket: handshake.TicketModeNormal}
			}
		})
	completeHandshake(t, e)

	require.Equal(t, handshake.ServerNameServer2, e.serverEvents.ServerName)
	// The primary configuration issued the ticket; the secondary's
	// callbacks were never invoked.
	require.False(t, e.serverEvents.TicketDoNotCall)
	require.True(t, e.client.Session().HasTicket())
}

func TestEngineConfigValidation(t *testing.T) {
	pair := membio.NewPair(membio.DefaultCapacity)
	t.Cleanup(pair.Release)

	_, err := engine.New(engine.Options{
		Role:   engine.RoleClient,
		Reader: pair.ServerToClient,
		Writer: pair.ClientToServer,
		Events: &engine.Events{},
	})
	require.Error(t, err)

	_, err = engine.New(engine.Options{
		Role:   engine.RoleClient,
		Config: &handshake.Config{ALPNProtocols: ",bad"},
		Reader: pair.ServerToClient,
		Writer: pair.ClientToServer,
		Events: &engine.Events{},
	})
	require.Error(t, err)

	_, err = engine.New(engine.Options{
		Role:   engine.RoleClient,
		Config: &handshake.Config{},
		Events: &engine.Events{},
	})
	require.Error(t, err)
}
