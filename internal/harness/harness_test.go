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

package harness_test

import (
	"testing"

	"github.com/JESU20950/tlsharness/handshake"
	"github.com/JESU20950/tlsharness/internal/harness"
	"github.com/stretchr/testify/require"
)

func TestSimpleHandshake(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Mode:        handshake.ModeSimple,
		AppDataSize: 16,
		Server:      &handshake.Config{},
		Client:      &handshake.Config{},
	})
	require.NoError(t, err)

	require.Equal(t, handshake.ResultSuccess, out.Result)
	require.Zero(t, out.ClientAlertSent)
	require.Zero(t, out.ClientAlertReceived)
	require.Zero(t, out.ServerAlertSent)
	require.Zero(t, out.ServerAlertReceived)
	require.False(t, out.ClientResumed)
	require.False(t, out.ServerResumed)
	require.Equal(t, handshake.VersionTLS13, out.ClientVersion)
	require.Equal(t, handshake.VersionTLS13, out.ServerVersion)
	require.Equal(t, handshake.ServerNameNone, out.ServerName)
	require.True(t, out.SessionTicket)
	require.False(t, out.TicketDoNotCall)
	require.Empty(t, out.ClientALPN)
	require.Empty(t, out.ClientNPN)
}

func TestVersionNegotiation(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{MaxVersion: handshake.VersionTLS12},
		Client: &handshake.Config{},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultSuccess, out.Result)
	require.Equal(t, handshake.VersionTLS12, out.ClientVersion)
	require.Equal(t, handshake.VersionTLS12, out.ServerVersion)
}

func TestALPNServerPreference(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{ALPNProtocols: "h2,http/1.1"},
		Client: &handshake.Config{ALPNProtocols: "http/1.1,h2"},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultSuccess, out.Result)
	require.Equal(t, "h2", out.ClientALPN)
	require.Equal(t, "h2", out.ServerALPN)
}

func TestALPNNoOverlapIsFatal(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{ALPNProtocols: "h2"},
		Client: &handshake.Config{ALPNProtocols: "spdy/3"},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultServerFail, out.Result)
	require.Equal(t, handshake.AlertNoApplicationProtocol, out.ServerAlertSent)
	require.Equal(t, handshake.AlertNoApplicationProtocol, out.ServerAlertReceived)
	require.Empty(t, out.ClientALPN)
	require.Empty(t, out.ServerALPN)
}

func TestNPNClientPreference(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{NPNProtocols: "b,c"},
		Client: &handshake.Config{NPNProtocols: "a,b"},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultSuccess, out.Result)
	require.Equal(t, "b", out.ClientNPN)
	require.Equal(t, "b", out.ServerNPN)
}

func TestNPNNoOverlapFallsBack(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{NPNProtocols: "x,y"},
		Client: &handshake.Config{NPNProtocols: "a,b"},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultSuccess, out.Result)
	require.Equal(t, "a", out.ClientNPN)
	require.Equal(t, "a", out.ServerNPN)
}

func TestServerNameRouting(t *testing.T) {
	server2ALPN := &handshake.Config{ALPNProtocols: "bar"}

	tests := []struct {
		name       string
		clientName handshake.ServerName
		mode       handshake.ServerNameMode
		wantResult handshake.Result
		wantRole   handshake.ServerName
		wantALPN   string
	}{
		{
			name:       "absent name stays on primary without ack",
			clientName: handshake.ServerNameNone,
			mode:       handshake.ServerNameModeIgnoreMismatch,
			wantResult: handshake.ResultSuccess,
			wantRole:   handshake.ServerNameServer1,
			wantALPN:   "foo",
		},
		{
			name:       "server2 switches to the secondary config",
			clientName: handshake.ServerNameServer2,
			mode:       handshake.ServerNameModeIgnoreMismatch,
			wantResult: handshake.ResultSuccess,
			wantRole:   handshake.ServerNameServer2,
			wantALPN:   "bar",
		},
		{
			name:       "server1 acknowledges the primary config",
			clientName: handshake.ServerNameServer1,
			mode:       handshake.ServerNameModeRejectMismatch,
			wantResult: handshake.ResultSuccess,
			wantRole:   handshake.ServerNameServer1,
			wantALPN:   "foo",
		},
		{
			name:       "unknown name ignored on primary",
			clientName: handshake.ServerNameInvalid,
			mode:       handshake.ServerNameModeIgnoreMismatch,
			wantResult: handshake.ResultSuccess,
			wantRole:   handshake.ServerNameServer1,
			wantALPN:   "foo",
		},
		{
			name:       "unknown name rejected fatally",
			clientName: handshake.ServerNameInvalid,
			mode:       handshake.ServerNameModeRejectMismatch,
			wantResult: handshake.ResultServerFail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := harness.Run(harness.RunConfig{
				Server: &handshake.Config{
					ServerNameMode: tt.mode,
					ALPNProtocols:  "foo",
				},
				Server2: server2ALPN,
				Client: &handshake.Config{
					ServerName:    tt.clientName,
					ALPNProtocols: "foo,bar",
				},
			})
			require.NoError(t, err)
			require.Equal(t, tt.wantResult, out.Result)

			if tt.wantResult != handshake.ResultSuccess {
				require.Equal(t, handshake.AlertUnrecognizedName, out.ServerAlertSent)
				require.Equal(t, handshake.AlertUnrecognizedName, out.ServerAlertReceived)
				return
			}
			require.Equal(t, tt.wantRole, out.ServerName)
			require.Equal(t, tt.wantALPN, out.ClientALPN)
			require.Equal(t, tt.wantALPN, out.ServerALPN)
			// The secondary configuration must never take part in
			// ticket handling, even when routing selects it.
			require.False(t, out.TicketDoNotCall)
			require.True(t, out.SessionTicket)
		})
	}
}

func TestVerifyRejectFailsClient(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{},
		Client: &handshake.Config{Verify: handshake.VerifyModeRejectAll},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultClientFail, out.Result)
	require.Equal(t, handshake.AlertBadCertificate, out.ClientAlertSent)
	require.Equal(t, handshake.AlertBadCertificate, out.ClientAlertReceived)
}

func TestBrokenTicketFailsServer(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Server: &handshake.Config{Ticket: handshake.TicketModeBroken},
		Client: &handshake.Config{},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultServerFail, out.Result)
	require.Equal(t, handshake.AlertInternalError, out.ServerAlertSent)
	require.False(t, out.TicketDoNotCall)
}

func TestResumption(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Mode:         handshake.ModeResume,
		AppDataSize:  16,
		Server:       &handshake.Config{},
		Client:       &handshake.Config{},
		ResumeServer: &handshake.Config{},
		ResumeClient: &handshake.Config{},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultSuccess, out.Result)
	require.True(t, out.ClientResumed)
	require.True(t, out.ServerResumed)
	require.True(t, out.SessionTicket)
}

func TestResumptionSkippedWhenFirstRunFails(t *testing.T) {
	out, err := harness.Run(harness.RunConfig{
		Mode:         handshake.ModeResume,
		Server:       &handshake.Config{},
		Client:       &handshake.Config{Verify: handshake.VerifyModeRejectAll},
		ResumeServer: &handshake.Config{},
		ResumeClient: &handshake.Config{},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultFirstHandshakeFailed, out.Result)
	require.Nil(t, out.Session)
}

func TestResumptionWithBrokenTicketKeys(t *testing.T) {
	// The resumption server cannot decrypt the ticket and falls back
	// to a full handshake, which then fails when it tries to issue a
	// fresh ticket with the same broken keys.
	out, err := harness.Run(harness.RunConfig{
		Mode:         handshake.ModeResume,
		Server:       &handshake.Config{},
		Client:       &handshake.Config{},
		ResumeServer: &handshake.Config{Ticket: handshake.TicketModeBroken},
		ResumeClient: &handshake.Config{},
	})
	require.NoError(t, err)
	require.Equal(t, handshake.ResultServerFail, out.Result)
}

func TestConfigContractViolations(t *testing.T) {
	_, err := harness.Run(harness.RunConfig{})
	require.Error(t, err)

	_, err = harness.Run(harness.RunConfig{
		Server: &handshake.Config{ALPNProtocols: "a,,b"},
		Client: &handshake.Config{},
	})
	require.Error(t, err)

	_, err = harness.Run(harness.RunConfig{
		Mode:   handshake.ModeResume,
		Server: &handshake.Config{},
		Client: &handshake.Config{},
	})
	require.Error(t, err)
}
