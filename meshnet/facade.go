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
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// InboundRequest is the shape in which a peer's invocation request
// reaches the owner of a Client's Events channel: the caller decides
// whether to serve it locally, then calls RespondFunction with the
// embedded handle.
type InboundRequest struct {
	Name   string
	Method string
	Body   []byte
	handle ResponseHandle
}

// Handle returns the opaque token RespondFunction needs to answer this
// request.
func (r InboundRequest) Handle() ResponseHandle { return r.handle }

// ResponseHandle wraps the still-open stream an inbound request arrived
// on. It is only ever constructed by the node and only ever consumed by
// Client.RespondFunction.
type ResponseHandle struct {
	stream network.Stream
}

// Client is the facade every other component uses to talk to the mesh.
// Each mesh operation sends exactly one command down the node's channel
// and, except RespondFunction, waits for its dedicated reply, mirroring
// the teacher's command-sender/oneshot-receiver pattern.
type Client struct {
	n *node
}

// New constructs the libp2p host, DHT, and identify service, starts the
// node's run loop, and returns the facade alongside the local peer ID.
// Callers should range over Events() on their own goroutine.
func New(ctx context.Context, listenAddr string, seed *uint8) (*Client, peer.ID, error) {
	nd, id, err := newNode(ctx, listenAddr, seed)
	if err != nil {
		return nil, "", err
	}
	nd.Start()
	return &Client{n: nd}, id, nil
}

// Events surfaces InboundRequest and PeerIdentified values as they
// occur. The channel is closed after Stop.
func (c *Client) Events() <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for {
			select {
			case raw, ok := <-c.n.events:
				if !ok {
					return
				}
				switch v := raw.(type) {
				case inboundRequest:
					out <- InboundRequest{
						Name:   v.Name,
						Method: v.Method,
						Body:   v.Body,
						handle: ResponseHandle{stream: v.Stream},
					}
				default:
					out <- raw
				}
			case <-c.n.quit:
				return
			}
		}
	}()
	return out
}

// StartListening begins listening on addr.
func (c *Client) StartListening(addr multiaddr.Multiaddr) error {
	reply := make(chan error, 1)
	c.n.cmd <- command{kind: cmdStartListening, addr: addr, errReply: reply}
	return <-reply
}

// Dial connects to peerID at peerAddr, bounded by an internal 3s
// timeout.
func (c *Client) Dial(peerID peer.ID, peerAddr multiaddr.Multiaddr) error {
	reply := make(chan error, 1)
	c.n.cmd <- command{kind: cmdDial, peer: peerID, addr: peerAddr, errReply: reply}
	return <-reply
}

// StartProviding advertises the local node as a provider of name.
func (c *Client) StartProviding(name string) error {
	reply := make(chan error, 1)
	c.n.cmd <- command{kind: cmdStartProviding, functionName: name, providersOnce: reply}
	return <-reply
}

// GetProviders looks up the providers of name, bounded by an internal
// 5s timeout. It returns every provider the lookup reported before it
// ended (deadline reached or 20 providers found); a lookup that fails
// or finds none yields an empty set rather than an error, matching the
// contract callers rely on to fall through to "no providers found".
func (c *Client) GetProviders(name string) peer.IDSlice {
	reply := make(chan map[peer.ID]struct{}, 1)
	c.n.cmd <- command{kind: cmdGetProviders, functionName: name, providersSet: reply}
	set := <-reply
	out := make(peer.IDSlice, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// RequestFunction asks peerID to invoke name with the given method and
// body, blocking until a response or transport failure.
func (c *Client) RequestFunction(peerID peer.ID, name, method string, body []byte) (FunctionResponse, error) {
	reply := make(chan requestResult, 1)
	c.n.cmd <- command{
		kind:         cmdRequestFunction,
		peer:         peerID,
		functionName: name,
		method:       method,
		body:         body,
		hasBody:      body != nil,
		requestReply: reply,
	}
	res := <-reply
	if res.err != nil {
		return FunctionResponse{}, fmt.Errorf("meshnet: request function: %w", res.err)
	}
	return res.resp, nil
}

// RespondFunction answers an InboundRequest previously received over
// Events().
func (c *Client) RespondFunction(handle ResponseHandle, status uint16, body []byte) {
	c.n.cmd <- command{kind: cmdRespondFunction, stream: handle.stream, status: status, body: body}
}

// LocalPeerID returns the ID of the local host.
func (c *Client) LocalPeerID() peer.ID { return c.n.host.ID() }

// Close stops the node's run loop and releases the host and DHT.
func (c *Client) Close() error { return c.n.Stop() }
