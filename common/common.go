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

// Package common holds the value types and error kinds shared by every
// layer of the gateway: the function name/request/response triple, the
// provider set, and the client-facing error taxonomy.
package common

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// HTTPMethod is one of the methods an InvocationRequest may carry.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodPatch  HTTPMethod = "PATCH"
)

// ValidMethod reports whether m is one of the five methods the system
// understands.
func ValidMethod(m string) (HTTPMethod, bool) {
	switch HTTPMethod(m) {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return HTTPMethod(m), true
	default:
		return "", false
	}
}

// RequiresBody reports whether m's invariant demands a non-nil body.
func (m HTTPMethod) RequiresBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

// FunctionName is a non-empty UTF-8 string used verbatim as a DHT key
// (after CID-wrapping, see meshnet.FunctionCID).
type FunctionName string

// NewFunctionName validates name per spec: non-empty.
func NewFunctionName(name string) (FunctionName, error) {
	if name == "" {
		return "", ErrBadRequest
	}
	return FunctionName(name), nil
}

func (f FunctionName) String() string { return string(f) }

// InvocationRequest is the (FunctionName, Method, Body?) triple. The
// Method/Body invariant (POST|PUT|PATCH require a body) is enforced by
// NewInvocationRequest, never trusted from the wire.
type InvocationRequest struct {
	Name   FunctionName
	Method HTTPMethod
	Body   []byte // nil means "no body"
}

// NewInvocationRequest validates the method/body invariant described in
// spec.md §3.
func NewInvocationRequest(name FunctionName, method HTTPMethod, body []byte) (InvocationRequest, error) {
	if method.RequiresBody() && body == nil {
		return InvocationRequest{}, fmt.Errorf("%w: method %s requires a body", ErrBadRequest, method)
	}
	return InvocationRequest{Name: name, Method: method, Body: body}, nil
}

// InvocationResponse is the (StatusCode, Body) pair returned by a
// backend invocation, whether local or relayed over the wire.
type InvocationResponse struct {
	StatusCode uint16
	Body       []byte
}

// ProviderSet is the set of peers known (for the lifetime of one
// top-level request) to host a given function.
type ProviderSet map[peer.ID]struct{}

// NewProviderSet builds a ProviderSet from a slice of peer IDs.
func NewProviderSet(peers ...peer.ID) ProviderSet {
	s := make(ProviderSet, len(peers))
	for _, p := range peers {
		s[p] = struct{}{}
	}
	return s
}

func (s ProviderSet) Contains(p peer.ID) bool {
	_, ok := s[p]
	return ok
}

func (s ProviderSet) Clone() ProviderSet {
	out := make(ProviderSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

func (s ProviderSet) Slice() []peer.ID {
	out := make([]peer.ID, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// Error kinds surfaced to HTTP clients, per spec.md §7.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = errors.New("no providers found")
	ErrUnreachable   = errors.New("no provider returned a successful response")
	ErrBackendFailed = errors.New("local backend invocation failed")
	ErrDeployFailed  = errors.New("function deployment failed")
)
