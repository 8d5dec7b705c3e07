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

// Package backend invokes functions hosted by the local OpenFaaS
// gateway on behalf of both direct HTTP callers and remote peers
// relaying an invocation request.
package backend

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/probeum/faasmesh/common"
)

const defaultTimeout = 30 * time.Second

// Invoker calls a function hosted on the local OpenFaaS gateway at
// host. It owns its own http.Client with an explicit timeout; the
// default http.Client is never used bare.
type Invoker struct {
	host   string
	client *http.Client
}

// New returns an Invoker targeting host (e.g. "http://127.0.0.1:8080").
func New(host string) *Invoker {
	return &Invoker{
		host:   host,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Invoke performs one HTTP call to {host}/function/{name}, mirroring
// req.Method and forwarding req.Body verbatim. The method/body
// invariant is assumed already enforced by common.NewInvocationRequest.
func (inv *Invoker) Invoke(req common.InvocationRequest) (common.InvocationResponse, error) {
	url := fmt.Sprintf("%s/function/%s", inv.host, req.Name)

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequest(string(req.Method), url, bodyReader)
	if err != nil {
		return common.InvocationResponse{}, fmt.Errorf("%w: %v", common.ErrBackendFailed, err)
	}

	resp, err := inv.client.Do(httpReq)
	if err != nil {
		return common.InvocationResponse{}, fmt.Errorf("%w: %v", common.ErrBackendFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.InvocationResponse{}, fmt.Errorf("%w: %v", common.ErrBackendFailed, err)
	}

	return common.InvocationResponse{StatusCode: uint16(resp.StatusCode), Body: body}, nil
}
