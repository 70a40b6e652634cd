// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package debug

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStacksFilter(t *testing.T) {
	require.Contains(t, Handler.Stacks(nil), "TestStacksFilter")

	include := "internal/debug"
	require.Contains(t, Handler.Stacks(&include), "TestStacksFilter")

	exclude := "!internal/debug"
	require.NotContains(t, Handler.Stacks(&exclude), "TestStacksFilter")
}

func TestCPUProfile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cpu.prof")
	require.NoError(t, Handler.StartCPUProfile(file))
	require.Error(t, Handler.StartCPUProfile(file))
	require.NoError(t, Handler.StopCPUProfile())
	require.FileExists(t, file)
	require.Error(t, Handler.StopCPUProfile())
}

func TestVmodule(t *testing.T) {
	require.NoError(t, Handler.Vmodule("beacon/light/*=5"))
	require.Error(t, Handler.Vmodule("beacon/light/*=x"))
	require.NoError(t, Handler.Vmodule(""))
}
