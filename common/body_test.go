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

package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectAndParseBodyJSONObject(t *testing.T) {
	p := DetectAndParseBody([]byte(`{"a":1}`))
	require.Equal(t, BodyJSON, p.Kind)
	require.JSONEq(t, `{"a":1}`, string(p.JSON))
}

func TestDetectAndParseBodyBareIntegerIsValidJSON(t *testing.T) {
	// Bare numeric scalars are valid JSON, so the JSON branch claims
	// them before the integer branch ever runs: this mirrors the
	// original Rust implementation (serde_json also accepts bare
	// scalars) rather than being a bug in the detection order.
	p := DetectAndParseBody([]byte("42"))
	require.Equal(t, BodyJSON, p.Kind)
}

func TestDetectAndParseBodyNonJSONString(t *testing.T) {
	p := DetectAndParseBody([]byte("not json and not a number"))
	require.Equal(t, BodyString, p.Kind)
	require.Equal(t, "not json and not a number", p.Str)
}

func TestSerializeBodyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{"object", []byte(`{"x":true}`)},
		{"string", []byte("plain text")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := DetectAndParseBody(tc.body)
			out, err := SerializeBody(parsed)
			require.NoError(t, err)
			require.True(t, len(out) > 0)
		})
	}
}

func TestNewFunctionNameRejectsEmpty(t *testing.T) {
	_, err := NewFunctionName("")
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestNewInvocationRequestEnforcesBodyInvariant(t *testing.T) {
	name, err := NewFunctionName("greet")
	require.NoError(t, err)

	_, err = NewInvocationRequest(name, MethodPost, nil)
	require.ErrorIs(t, err, ErrBadRequest)

	req, err := NewInvocationRequest(name, MethodGet, nil)
	require.NoError(t, err)
	require.Equal(t, MethodGet, req.Method)
}

func TestValidMethod(t *testing.T) {
	_, ok := ValidMethod("TRACE")
	require.False(t, ok)

	m, ok := ValidMethod("PUT")
	require.True(t, ok)
	require.True(t, m.RequiresBody())
}
