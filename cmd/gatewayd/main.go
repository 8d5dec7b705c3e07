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

// Command gatewayd starts one peer of the function-invocation mesh: it
// joins the DHT, serves the HTTP ingress, and relays inbound peer
// requests to the local OpenFaaS backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"gopkg.in/urfave/cli.v1"

	"github.com/probeum/faasmesh/api"
	"github.com/probeum/faasmesh/backend"
	"github.com/probeum/faasmesh/deploy"
	"github.com/probeum/faasmesh/functions"
	"github.com/probeum/faasmesh/meshnet"
	"github.com/probeum/faasmesh/scheduler"
	"github.com/probeum/faasmesh/xlog"
)

var log = xlog.New("gatewayd")

func main() {
	app := cli.NewApp()
	app.Name = "gatewayd"
	app.Usage = "function-invocation gateway peer"
	app.Flags = appFlags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	listenAddr := ctx.String(p2pListenAddressFlag.Name)
	httpPort := ctx.String(httpListenPortFlag.Name)
	dockerUsername := ctx.String(dockerUsernameFlag.Name)
	backendHost := ctx.String(backendHostFlag.Name)
	bootstrapPeer := ctx.String(peerFlag.Name)

	var seed *uint8
	if ctx.IsSet(secretKeySeedFlag.Name) {
		v := ctx.Int(secretKeySeedFlag.Name)
		if v < 0 || v > 255 {
			return fmt.Errorf("secret_key_seed must be in [0, 255], got %d", v)
		}
		b := uint8(v)
		seed = &b
	}

	background := context.Background()

	mesh, localPeer, err := meshnet.New(background, listenAddr, seed)
	if err != nil {
		return fmt.Errorf("start mesh: %w", err)
	}
	log.Info("node identity established", "peer", localPeer.String())

	addr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return fmt.Errorf("parse p2p_listen_address: %w", err)
	}
	if err := mesh.StartListening(addr); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}

	if bootstrapPeer != "" {
		if err := dialBootstrapPeer(mesh, bootstrapPeer); err != nil {
			log.Warn("failed to dial bootstrap peer", "peer", bootstrapPeer, "err", err)
		}
	}

	inv := backend.New(backendHost)
	tracker := scheduler.New()
	deployer := deploy.New(dockerUsername)
	svc := functions.New(mesh, inv, tracker, deployer, localPeer)

	go serveInboundRequests(mesh, svc)

	log.Info("serving http ingress", "port", httpPort)
	return api.Listen(httpPort, svc)
}

func dialBootstrapPeer(mesh *meshnet.Client, addrStr string) error {
	full, err := multiaddr.NewMultiaddr(addrStr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(full)
	if err != nil {
		return err
	}
	if len(info.Addrs) == 0 {
		return fmt.Errorf("bootstrap multiaddr %q carries no dialable address", addrStr)
	}
	return mesh.Dial(info.ID, info.Addrs[0])
}

// serveInboundRequests answers peer requests against the local backend,
// the counterpart of the remote fan-out functions.Service performs for
// outbound calls.
func serveInboundRequests(mesh *meshnet.Client, svc *functions.Service) {
	for raw := range mesh.Events() {
		switch req := raw.(type) {
		case meshnet.InboundRequest:
			go respondToPeer(mesh, svc, req)
		case meshnet.PeerIdentified:
			log.Debug("peer identified", "peer", req.Peer.String())
		}
	}
}

func respondToPeer(mesh *meshnet.Client, svc *functions.Service, req meshnet.InboundRequest) {
	status, body := svc.ServeInbound(req.Name, req.Method, req.Body)
	mesh.RespondFunction(req.Handle(), status, body)
}
