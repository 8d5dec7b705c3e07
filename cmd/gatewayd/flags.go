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

package main

import "gopkg.in/urfave/cli.v1"

var (
	p2pListenAddressFlag = cli.StringFlag{
		Name:  "p2p_listen_address",
		Usage: "Multiaddr to listen on for peer connections, e.g. /ip4/0.0.0.0/tcp/4001",
		Value: "/ip4/0.0.0.0/tcp/4001",
	}

	secretKeySeedFlag = cli.IntFlag{
		Name:  "secret_key_seed",
		Usage: "Deterministic seed byte (0-255) for the node's Ed25519 keypair; omitted means generate a random identity",
		Value: -1,
	}

	peerFlag = cli.StringFlag{
		Name:  "peer",
		Usage: "Multiaddr of a bootstrap peer to dial on startup, e.g. /ip4/1.2.3.4/tcp/4001/p2p/<peer-id>",
	}

	httpListenPortFlag = cli.StringFlag{
		Name:  "http_listen_port",
		Usage: "Port the HTTP ingress listens on",
		Value: "8000",
	}

	dockerUsernameFlag = cli.StringFlag{
		Name:  "docker_username",
		Usage: "Docker Hub username images are published under during deployment",
	}

	backendHostFlag = cli.StringFlag{
		Name:  "backend_host",
		Usage: "OpenFaaS gateway this node invokes local functions against",
		Value: "http://localhost:8080",
	}
)

var appFlags = []cli.Flag{
	p2pListenAddressFlag,
	secretKeySeedFlag,
	peerFlag,
	httpListenPortFlag,
	dockerUsernameFlag,
	backendHostFlag,
}
