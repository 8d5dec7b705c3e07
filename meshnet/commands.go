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
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// commandKind tags which variant of command a value holds. The node's
// event loop is the only goroutine that ever reads these; everything
// else only ever constructs one and sends it down the command channel.
type commandKind int

const (
	cmdStartListening commandKind = iota
	cmdDial
	cmdStartProviding
	cmdGetProviders
	cmdRequestFunction
	cmdRespondFunction
)

// command is a closed sum type mirroring the teacher's Command enum:
// exactly one constructor below is used per send, and the node's
// handleCommand switches on kind.
type command struct {
	kind commandKind

	addr multiaddr.Multiaddr
	peer peer.ID

	functionName string
	method       string
	body         []byte
	hasBody      bool
	status       uint16 // set for cmdRespondFunction

	stream network.Stream // set for cmdRespondFunction

	errReply      chan error
	providersOnce chan error // StartProviding completion
	providersSet  chan map[peer.ID]struct{}
	requestReply  chan requestResult
}

type requestResult struct {
	resp FunctionResponse
	err  error
}

// inboundRequest is delivered to the node's owner over the events
// channel the facade exposes: exactly what the rust EventLoop's
// Event::InboundRequest carries, including the still-open stream to
// reply on.
type inboundRequest struct {
	Name   string
	Method string
	Body   []byte
	Stream network.Stream
}

// node keeps no pending-operation tables: each command that needs an
// answer carries its own reply channel (errReply, providersOnce,
// providersSet or requestReply), and whichever code handles the command
// answers on that channel directly.
