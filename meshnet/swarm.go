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
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	"github.com/multiformats/go-multiaddr"

	"github.com/probeum/faasmesh/xlog"
)

const (
	dialTimeout            = 3 * time.Second
	getProvidersTimeout    = 5 * time.Second
	requestFunctionTimeout = 10 * time.Second
	maxProvidersPerLookup  = 20
)

// node holds the libp2p host and DHT. Its run loop takes commands off
// cmd one at a time, in the order they were sent: StartListening and
// RespondFunction are handled inline, while Dial, StartProviding,
// GetProviders and RequestFunction each run in a helper goroutine that
// calls the host or DHT itself (Connect, Provide, FindProvidersAsync,
// NewStream, routing-table TryAddPeer) and answers on the command's own
// reply channel. The host and DHT are therefore not touched by the run
// loop alone: helper goroutines, the identify forwarder and the
// connection notifiee all call into them concurrently.
type node struct {
	host host.Host
	dht  *dht.IpfsDHT
	log  xlog.Logger

	cmd    chan command
	events chan interface{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// PeerIdentified is delivered on the facade's Events channel when the
// identify protocol completes for a newly connected peer, mirroring the
// teacher's pattern of feeding identify completions back into routing
// table maintenance.
type PeerIdentified struct {
	Peer peer.ID
}

// keypairFromSeed derives an ed25519 keypair deterministically: the
// first byte of the 32-byte seed buffer is the caller's seed value, the
// rest are zero. A nil seed asks for a freshly generated keypair.
func keypairFromSeed(seed *uint8) (crypto.PrivKey, error) {
	var buf [32]byte
	if seed != nil {
		buf[0] = *seed
	} else {
		pub, priv, err := ed25519.GenerateKey(nil)
		_ = pub
		if err != nil {
			return nil, err
		}
		return crypto.UnmarshalEd25519PrivateKey(priv)
	}
	priv := ed25519.NewKeyFromSeed(buf[:])
	return crypto.UnmarshalEd25519PrivateKey(priv)
}

// newNode constructs the host, the Kademlia DHT in server mode, and the
// identify service, and starts a goroutine that consumes the identify
// event bus subscription (see forwardIdentifyEvents).
func newNode(ctx context.Context, listenAddr string, seed *uint8) (*node, peer.ID, error) {
	priv, err := keypairFromSeed(seed)
	if err != nil {
		return nil, "", fmt.Errorf("meshnet: derive keypair: %w", err)
	}

	addr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, "", fmt.Errorf("meshnet: parse listen address: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrs(addr),
	)
	if err != nil {
		return nil, "", fmt.Errorf("meshnet: construct host: %w", err)
	}

	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeServer))
	if err != nil {
		return nil, "", fmt.Errorf("meshnet: construct dht: %w", err)
	}

	idService, err := identify.NewIDService(h)
	if err != nil {
		return nil, "", fmt.Errorf("meshnet: construct identify service: %w", err)
	}
	idService.Start()

	n := &node{
		host:   h,
		dht:    kad,
		log:    xlog.New("meshnet", "peer", h.ID().String()),
		cmd:    make(chan command),
		events: make(chan interface{}, 32),
		quit:   make(chan struct{}),
	}

	sub, err := h.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return nil, "", fmt.Errorf("meshnet: subscribe identify events: %w", err)
	}
	n.wg.Add(1)
	go n.forwardIdentifyEvents(sub)

	h.Network().Notify(&connNotifiee{n: n})
	h.SetStreamHandler(ProtocolID, n.handleInboundStream)

	return n, h.ID(), nil
}

// connNotifiee populates the DHT routing table from the accepting
// side of an inbound connection, per spec.md §4.B: the dialer already
// learns the remote peer's routing entry via runDial's
// TryAddPeer, but the accepting node never calls Connect itself, so it
// must pick up the remote endpoint address here instead.
type connNotifiee struct{ n *node }

func (c *connNotifiee) Listen(network.Network, multiaddr.Multiaddr)      {}
func (c *connNotifiee) ListenClose(network.Network, multiaddr.Multiaddr) {}
func (c *connNotifiee) Disconnected(network.Network, network.Conn)      {}

func (c *connNotifiee) Connected(_ network.Network, conn network.Conn) {
	if conn.Stat().Direction != network.DirInbound {
		return
	}
	remote := conn.RemotePeer()
	c.n.host.Peerstore().AddAddr(remote, conn.RemoteMultiaddr(), time.Hour)
	c.n.dht.RoutingTable().TryAddPeer(remote, false, false)
}

func (n *node) forwardIdentifyEvents(sub event.Subscription) {
	defer n.wg.Done()
	defer sub.Close()
	for {
		select {
		case <-n.quit:
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := raw.(event.EvtPeerIdentificationCompleted)
			if !ok {
				continue
			}
			if len(evt.ListenAddrs) > 0 {
				n.host.Peerstore().AddAddrs(evt.Peer, evt.ListenAddrs, time.Hour)
				n.dht.RoutingTable().TryAddPeer(evt.Peer, false, false)
			}
			n.emit(PeerIdentified{Peer: evt.Peer})
		}
	}
}

// handleInboundStream is registered once on the host; it decodes one
// FunctionRequest and emits it on the events channel (surfaced through
// Client.Events) as an inboundRequest, leaving the stream open for the
// eventual RespondFunction command.
func (n *node) handleInboundStream(s network.Stream) {
	req, err := readFunctionRequest(s)
	if err != nil {
		n.log.Warn("failed to decode inbound function request", "err", err)
		_ = s.Reset()
		return
	}
	n.emit(inboundRequest{
		Name:   req.Name,
		Method: req.Method,
		Body:   req.Body,
		Stream: s,
	})
}

func (n *node) emit(e interface{}) {
	select {
	case n.events <- e:
	case <-n.quit:
	}
}

// Start launches the run loop. Stop must be called to release it.
func (n *node) Start() {
	n.wg.Add(1)
	go n.run()
}

func (n *node) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.quit:
			return
		case c := <-n.cmd:
			n.handleCommand(c)
		}
	}
}

func (n *node) handleCommand(c command) {
	switch c.kind {
	case cmdStartListening:
		err := n.host.Network().Listen(c.addr)
		c.errReply <- err
	case cmdDial:
		n.wg.Add(1)
		go n.runDial(c)
	case cmdStartProviding:
		n.wg.Add(1)
		go n.runStartProviding(c)
	case cmdGetProviders:
		n.wg.Add(1)
		go n.runGetProviders(c)
	case cmdRequestFunction:
		n.wg.Add(1)
		go n.runRequestFunction(c)
	case cmdRespondFunction:
		n.runRespondFunction(c)
	}
}

func (n *node) runDial(c command) {
	defer n.wg.Done()
	err := n.dial(context.Background(), peer.AddrInfo{ID: c.peer, Addrs: []multiaddr.Multiaddr{c.addr}})
	c.errReply <- err
}

// dial bounds the connection attempt to dialTimeout against parent,
// strictly shorter than the 5s lookup timeout per spec.md §9 whenever
// parent itself carries that deadline, so the dial can never extinguish
// the lookup window. On success the peer is added to the DHT routing
// table, mirroring runDial's own bookkeeping.
func (n *node) dial(parent context.Context, info peer.AddrInfo) error {
	ctx, cancel := context.WithTimeout(parent, dialTimeout)
	defer cancel()

	if len(info.Addrs) > 0 {
		n.host.Peerstore().AddAddrs(info.ID, info.Addrs, time.Hour)
	}
	err := n.host.Connect(ctx, info)
	if err == nil {
		n.dht.RoutingTable().TryAddPeer(info.ID, false, false)
	}
	return err
}

func (n *node) runStartProviding(c command) {
	defer n.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, err := FunctionCID(c.functionName)
	if err != nil {
		c.providersOnce <- err
		return
	}
	c.providersOnce <- n.dht.Provide(ctx, id, true)
}

// runGetProviders drains the DHT's provider stream and, for each
// newly-seen provider not already connected, attempts a bounded dial
// before the provider set is sent back — matching spec.md §4.B's
// "found providers" handling exactly, including the requirement that
// the dial-within-lookup wait stay strictly shorter than the overall
// lookup timeout.
func (n *node) runGetProviders(c command) {
	defer n.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), getProvidersTimeout)
	defer cancel()

	out := make(map[peer.ID]struct{})
	id, err := FunctionCID(c.functionName)
	if err != nil {
		c.providersSet <- out
		return
	}

	var dialWG sync.WaitGroup
	for info := range n.dht.FindProvidersAsync(ctx, id, maxProvidersPerLookup) {
		if info.ID == "" {
			continue
		}
		out[info.ID] = struct{}{}

		if info.ID == n.host.ID() || n.host.Network().Connectedness(info.ID) == network.Connected {
			continue
		}
		dialWG.Add(1)
		go func(info peer.AddrInfo) {
			defer dialWG.Done()
			if err := n.dial(ctx, info); err != nil {
				n.log.Debug("dial-within-lookup failed", "peer", info.ID.String(), "err", err)
			}
		}(info)
	}
	dialWG.Wait()
	c.providersSet <- out
}

func (n *node) runRequestFunction(c command) {
	defer n.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), requestFunctionTimeout)
	defer cancel()

	s, err := n.host.NewStream(ctx, c.peer, ProtocolID)
	if err != nil {
		c.requestReply <- requestResult{err: err}
		return
	}
	defer s.Close()

	req := FunctionRequest{Name: c.functionName, Method: c.method, Body: c.body, HasBody: c.hasBody}
	if err := writeFunctionRequest(s, req); err != nil {
		c.requestReply <- requestResult{err: err}
		return
	}
	if err := s.CloseWrite(); err != nil {
		c.requestReply <- requestResult{err: err}
		return
	}

	resp, err := readFunctionResponse(s)
	c.requestReply <- requestResult{resp: resp, err: err}
}

func (n *node) runRespondFunction(c command) {
	defer c.stream.Close()
	resp := FunctionResponse{Status: c.status, Body: c.body}
	if err := writeFunctionResponse(c.stream, resp); err != nil {
		n.log.Warn("failed to write function response", "err", err)
	}
}

// Stop tears down the event loop and the identify forwarder, waits for
// helper goroutines, then closes the DHT and the host.
func (n *node) Stop() error {
	close(n.quit)
	n.wg.Wait()
	if err := n.dht.Close(); err != nil {
		return err
	}
	return n.host.Close()
}
