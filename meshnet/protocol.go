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

// Package meshnet is the peer-to-peer transport layer: a libp2p host and
// Kademlia DHT driven by a single event-loop goroutine (node), and the
// FunctionRequest/FunctionResponse wire protocol peers speak to one
// another over a dedicated stream protocol.
package meshnet

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID is the stream protocol peers open to exchange one function
// invocation request/response pair.
const ProtocolID = protocol.ID("/function-request/1")

// FunctionRequest is the wire form of an invocation request: the
// function name, method, and optional body, in that order to match the
// tuple-style wire shape this protocol was distilled from.
type FunctionRequest struct {
	_       struct{} `cbor:",toarray"`
	Name    string
	Method  string
	Body    []byte
	HasBody bool
}

// FunctionResponse is the wire form of an invocation's result.
type FunctionResponse struct {
	_      struct{} `cbor:",toarray"`
	Status uint16
	Body   []byte
}

// writeFunctionRequest CBOR-encodes req directly onto w. CBOR items are
// self-delimiting, so no length prefix is needed. Each read function
// decodes one item with a decoder of its own, which may buffer bytes
// beyond that item; bytes it read ahead are dropped when the call
// returns, so a second read call on the same reader does not see them.
func writeFunctionRequest(w io.Writer, req FunctionRequest) error {
	return cbor.NewEncoder(w).Encode(req)
}

func readFunctionRequest(r io.Reader) (FunctionRequest, error) {
	var req FunctionRequest
	err := cbor.NewDecoder(r).Decode(&req)
	return req, err
}

func writeFunctionResponse(w io.Writer, resp FunctionResponse) error {
	return cbor.NewEncoder(w).Encode(resp)
}

func readFunctionResponse(r io.Reader) (FunctionResponse, error) {
	var resp FunctionResponse
	err := cbor.NewDecoder(r).Decode(&resp)
	return resp, err
}
