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

package backend

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probeum/faasmesh/common"
)

func TestInvokeMirrorsMethodAndForwardsBody(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	inv := New(srv.URL)
	name, err := common.NewFunctionName("greet")
	require.NoError(t, err)
	req, err := common.NewInvocationRequest(name, common.MethodPost, []byte("payload"))
	require.NoError(t, err)

	resp, err := inv.Invoke(req)
	require.NoError(t, err)
	require.Equal(t, uint16(http.StatusCreated), resp.StatusCode)
	require.Equal(t, "ok", string(resp.Body))
	require.Equal(t, "POST", gotMethod)
	require.Equal(t, "/function/greet", gotPath)
	require.Equal(t, "payload", string(gotBody))
}

func TestInvokeGetSendsNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GET", r.Method)
		body, _ := io.ReadAll(r.Body)
		require.Empty(t, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := New(srv.URL)
	name, err := common.NewFunctionName("greet")
	require.NoError(t, err)
	req, err := common.NewInvocationRequest(name, common.MethodGet, nil)
	require.NoError(t, err)

	resp, err := inv.Invoke(req)
	require.NoError(t, err)
	require.Equal(t, uint16(http.StatusOK), resp.StatusCode)
}

func TestInvokeWrapsTransportFailure(t *testing.T) {
	inv := New("http://127.0.0.1:1")
	name, err := common.NewFunctionName("greet")
	require.NoError(t, err)
	req, err := common.NewInvocationRequest(name, common.MethodGet, nil)
	require.NoError(t, err)

	_, err = inv.Invoke(req)
	require.ErrorIs(t, err, common.ErrBackendFailed)
}
