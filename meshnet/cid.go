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
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// FunctionCID wraps a raw function name as a CID so it can key a
// go-libp2p-kad-dht provider record. The DHT this package builds on
// indexes providers by content identifier rather than by an arbitrary
// byte string, so every function name is hashed into one deterministically
// before it ever reaches Provide/FindProvidersAsync.
func FunctionCID(name string) (cid.Cid, error) {
	mh, err := multihash.Sum([]byte(name), multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}
