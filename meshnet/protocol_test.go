// Copyright 2024 The faasmesh Authors
// This file is part of faasmesh.
//
// faasmesh is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// faasmesh is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with faasmesh. If not, see <http://www.gnu.org/licenses/>.

package meshnet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFunctionRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := FunctionRequest{Name: "greet", Method: "POST", Body: []byte("hello"), HasBody: true}

	require.NoError(t, writeFunctionRequest(&buf, req))

	got, err := readFunctionRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestFunctionRequestRoundTripNilBody(t *testing.T) {
	var buf bytes.Buffer
	req := FunctionRequest{Name: "greet", Method: "GET"}

	require.NoError(t, writeFunctionRequest(&buf, req))

	got, err := readFunctionRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, "greet", got.Name)
	require.Equal(t, "GET", got.Method)
}

func TestFunctionResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	resp := FunctionResponse{Status: 200, Body: []byte("payload")}

	require.NoError(t, writeFunctionResponse(&buf, resp))

	got, err := readFunctionResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestTwoFramesOnSameStreamDecodeIndependently(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFunctionResponse(&buf, FunctionResponse{Status: 200, Body: []byte("a")}))
	require.NoError(t, writeFunctionResponse(&buf, FunctionResponse{Status: 404, Body: []byte("b")}))

	first, err := readFunctionResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, uint16(200), first.Status)

	second, err := readFunctionResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, uint16(404), second.Status)
}
