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

// Package harness orchestrates a complete in-memory handshake run: it
// drives the two endpoint engines through the ordered connection phases
// with a cooperative alternating-turn loop, resolves their statuses into a
// single joint verdict each turn, and aggregates the terminal state into
// an immutable outcome.
package harness

import (
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JESU20950/tlsharness/handshake"
	"github.com/JESU20950/tlsharness/internal/engine"
	"github.com/JESU20950/tlsharness/internal/membio"
)

// defaultAppDataSize is the number of application-data bytes each side
// sends when the caller does not specify one.
const defaultAppDataSize = 256

// RunConfig describes one harness invocation.
type RunConfig struct {
	Mode handshake.Mode

	// AppDataSize is the target application-data byte count each side
	// sends; zero means defaultAppDataSize.
	AppDataSize int

	// Server is the primary server configuration, Server2 the optional
	// secondary selected by server-name routing.
	Server  *handshake.Config
	Server2 *handshake.Config
	Client  *handshake.Config

	// ResumeServer and ResumeClient are used for the second run in
	// resume mode. Server-name routing is disabled on that run.
	ResumeServer *handshake.Config
	ResumeClient *handshake.Config

	Logger *slog.Logger
}

// Run executes the configured handshake(s) and returns the outcome of the
// final run. Errors report configuration-contract violations; protocol and
// internal failures are classified in the outcome instead.
func Run(cfg RunConfig) (*handshake.Outcome, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("runID", uuid.NewString())

	if cfg.Server == nil || cfg.Client == nil {
		return nil, errors.New("harness: server and client configs are required")
	}

	appDataSize := cfg.AppDataSize
	if appDataSize == 0 {
		appDataSize = defaultAppDataSize
	}

	first, session, err := runOne(logger, runParams{
		server:      cfg.Server,
		server2:     cfg.Server2,
		client:      cfg.Client,
		appDataSize: appDataSize,
		wantSession: cfg.Mode == handshake.ModeResume,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Mode == handshake.ModeSimple {
		return first, nil
	}

	if cfg.ResumeServer == nil || cfg.ResumeClient == nil {
		return nil, errors.New("harness: resume mode requires resume configs")
	}

	// The resumption run only happens after a fully successful first run.
	if first.Result != handshake.ResultSuccess {
		logger.Info("first handshake failed, skipping resumption",
			"result", first.Result)
		first.Result = handshake.ResultFirstHandshakeFailed
		first.Session = nil
		return first, nil
	}

	// Server-name routing is not supported on the resumption run, so no
	// secondary configuration is installed.
	second, _, err := runOne(logger.With("resumption", true), runParams{
		server:      cfg.ResumeServer,
		client:      cfg.ResumeClient,
		appDataSize: appDataSize,
		session:     session,
	})
	if err != nil {
		return nil, err
	}
	return second, nil
}

type runParams struct {
	server      *handshake.Config
	server2     *handshake.Config
	client      *handshake.Config
	appDataSize int
	session     *handshake.Session
	wantSession bool
}

// runOne is a single handshake run: transport pair and engines are created,
// driven to a terminal verdict, drained into an outcome, and torn down.
func runOne(logger *slog.Logger, p runParams) (*handshake.Outcome, *handshake.Session, error) {
	pair := membio.NewPair(membio.DefaultCapacity)
	pair.Attach() // one reference per endpoint
	defer pair.Release()
	defer pair.Release()

	var clientEvents, serverEvents engine.Events

	serverConn, err := engine.New(engine.Options{
		Role:      engine.RoleServer,
		Config:    p.server,
		Secondary: p.server2,
		Reader:    pair.ClientToServer,
		Writer:    pair.ServerToClient,
		Events:    &serverEvents,
	})
	if err != nil {
		return nil, nil, err
	}
	clientConn, err := engine.New(engine.Options{
		Role:    engine.RoleClient,
		Config:  p.client,
		Session: p.session,
		Reader:  pair.ServerToClient,
		Writer:  pair.ClientToServer,
		Events:  &clientEvents,
	})
	if err != nil {
		return nil, nil, err
	}

	client := newPeer("client", clientConn, p.appDataSize)
	server := newPeer("server", serverConn, p.appDataSize)

	result := runLoop(logger, client, server)

	out := &handshake.Outcome{
		Result: result,

		ClientAlertSent:     clientEvents.AlertSent,
		ServerAlertReceived: clientEvents.AlertReceived,
		ServerAlertSent:     serverEvents.AlertSent,
		ClientAlertReceived: serverEvents.AlertReceived,

		ClientVersion: clientConn.Version(),
		ServerVersion: serverConn.Version(),

		ServerName:      serverEvents.ServerName,
		TicketDoNotCall: serverEvents.TicketDoNotCall,

		ClientNPN:  clientConn.NPN(),
		ServerNPN:  serverConn.NPN(),
		ClientALPN: clientConn.ALPN(),
		ServerALPN: serverConn.ALPN(),

		ClientResumed: clientConn.Resumed(),
		ServerResumed: serverConn.Resumed(),
	}

	session := clientConn.Session()
	out.SessionTicket = session.HasTicket()
	if p.wantSession {
		out.Session = session
	}

	logger.Info("handshake run complete",
		"result", out.Result,
		"serverName", out.ServerName,
		"clientResumed", out.ClientResumed,
		"sessionTicket", out.SessionTicket)

	return out, session, nil
}

// runLoop is the half-duplex turn scheduler. Client and server speak to
// each other synchronously in the same process; whenever one endpoint
// blocks for read it reports Retry, signalling that it is the other
// endpoint's turn to act. The run succeeds once both endpoints complete
// every phase; if one endpoint errors, the other still gets to run on and
// observe the failure.
func runLoop(logger *slog.Logger, client, server *peer) handshake.Result {
	ph := phaseHandshake
	clientTurn := true

	for {
		var v verdict
		if clientTurn {
			client.step(ph)
			v = resolve(client.status, server.status, true)
		} else {
			server.step(ph)
			v = resolve(server.status, client.status, false)
		}

		logger.Debug("turn resolved",
			"phase", ph,
			"clientTurn", clientTurn,
			"clientStatus", client.status,
			"serverStatus", server.status,
			"verdict", v)

		switch v {
		case verdictSuccess:
			ph = ph.next()
			if ph == phaseDone {
				return handshake.ResultSuccess
			}
			// Each phase starts afresh, client first.
			client.status = statusRetry
			server.status = statusRetry
			clientTurn = true
		case verdictClientError:
			return handshake.ResultClientFail
		case verdictServerError:
			return handshake.ResultServerFail
		case verdictInternalError:
			return handshake.ResultInternalError
		case verdictRetry:
			clientTurn = !clientTurn
		}
	}
}
