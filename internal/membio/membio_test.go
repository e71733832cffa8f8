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

package membio_test

import (
	"bytes"
	"testing"

	"github.com/JESU20950/tlsharness/internal/membio"
	"github.com/stretchr/testify/require"
)

func TestReadEmptyWouldBlock(t *testing.T) {
	pair := membio.NewPair(16)
	defer pair.Release()

	buf := make([]byte, 8)
	n, err := pair.ClientToServer.Read(buf)
	require.ErrorIs(t, err, membio.ErrWouldBlock)
	require.Zero(t, n)
}

func TestWriteIsAllOrNothing(t *testing.T) {
	pair := membio.NewPair(8)
	defer pair.Release()

	ch := pair.ClientToServer

	n, err := ch.Write([]byte("abcde"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// Only 3 bytes of space remain; nothing may be transferred.
	n, err = ch.Write([]byte("fghi"))
	require.ErrorIs(t, err, membio.ErrWouldBlock)
	require.Zero(t, n)
	require.Equal(t, 5, ch.Len())

	n, err = ch.Write([]byte("fgh"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestReadDrainsInOrder(t *testing.T) {
	pair := membio.NewPair(64)
	defer pair.Release()

	ch := pair.ServerToClient
	_, err := ch.Write([]byte("hello world"))
	require.NoError(t, err)

	var got bytes.Buffer
	buf := make([]byte, 4)
	for {
		n, err := ch.Read(buf)
		if err != nil {
			require.ErrorIs(t, err, membio.ErrWouldBlock)
			break
		}
		got.Write(buf[:n])
	}
	require.Equal(t, "hello world", got.String())
}

func TestDirectionsAreIndependent(t *testing.T) {
	pair := membio.NewPair(64)
	defer pair.Release()

	_, err := pair.ClientToServer.Write([]byte("c2s"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = pair.ServerToClient.Read(buf)
	require.ErrorIs(t, err, membio.ErrWouldBlock)

	n, err := pair.ClientToServer.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "c2s", string(buf[:n]))
}

func TestSharedOwnershipTeardown(t *testing.T) {
	pair := membio.NewPair(16)
	pair.Attach()

	pair.Release()
	require.False(t, pair.Released())

	_, err := pair.ClientToServer.Write([]byte("x"))
	require.NoError(t, err)

	pair.Release()
	require.True(t, pair.Released())

	require.Panics(t, func() {
		_, _ = pair.ClientToServer.Write([]byte("x"))
	})
	require.Panics(t, func() { pair.Release() })
}
