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

// Package functions orchestrates one invocation end to end: locating
// providers over the mesh, racing or fanning out requests to them, and
// falling back to the local backend when this node is itself a
// provider. It also drives function deployment.
package functions

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/probeum/faasmesh/backend"
	"github.com/probeum/faasmesh/common"
	"github.com/probeum/faasmesh/deploy"
	"github.com/probeum/faasmesh/meshnet"
	"github.com/probeum/faasmesh/scheduler"
	"github.com/probeum/faasmesh/xlog"
)

var log = xlog.New("functions")

// meshClient is the subset of meshnet.Client's facade this package
// depends on; declaring it here lets tests substitute a fake mesh
// without standing up a real libp2p host.
type meshClient interface {
	GetProviders(name string) peer.IDSlice
	RequestFunction(peerID peer.ID, name, method string, body []byte) (meshnet.FunctionResponse, error)
	StartProviding(name string) error
}

// invoker is the subset of backend.Invoker this package depends on.
type invoker interface {
	Invoke(req common.InvocationRequest) (common.InvocationResponse, error)
}

// functionDeployer is the subset of deploy.Deployer this package
// depends on.
type functionDeployer interface {
	Deploy(handler, requirements []byte, name string) (common.FunctionName, error)
}

// Service is the function-invocation and deployment orchestrator
// (component E). It is safe for concurrent use: all shared mutable
// state lives in the Tracker, which is itself concurrency-safe.
type Service struct {
	mesh      meshClient
	inv       invoker
	tracker   *scheduler.Tracker
	deployer  functionDeployer
	localPeer peer.ID
}

// New wires the collaborators a Service needs.
func New(mesh *meshnet.Client, inv *backend.Invoker, tracker *scheduler.Tracker, deployer *deploy.Deployer, localPeer peer.ID) *Service {
	return &Service{mesh: mesh, inv: inv, tracker: tracker, deployer: deployer, localPeer: localPeer}
}

// Execute resolves name to its providers and returns the first
// successful response: the local backend directly if this node is a
// provider, otherwise a race across every remote provider. The
// returned body is re-emitted through the client-facing body-parsing
// rule (spec.md §6), the same one ExecuteManyCall applies per item.
func (s *Service) Execute(req common.InvocationRequest) (common.InvocationResponse, error) {
	providerIDs := s.mesh.GetProviders(req.Name.String())
	if len(providerIDs) == 0 {
		return common.InvocationResponse{}, common.ErrNotFound
	}
	providers := common.NewProviderSet(providerIDs...)

	var resp common.InvocationResponse
	var err error
	if providers.Contains(s.localPeer) {
		resp, err = s.invokeLocal(req)
	} else {
		resp, err = s.raceRemote(providers, req)
	}
	if err != nil {
		return common.InvocationResponse{}, err
	}
	return parseResponseBody(resp), nil
}

// parseResponseBody applies the JSON/integer/float/boolean/string
// detection order of common.DetectAndParseBody and re-emits the result
// via common.SerializeBody, per spec.md §6.
func parseResponseBody(resp common.InvocationResponse) common.InvocationResponse {
	parsed := common.DetectAndParseBody(resp.Body)
	serialized, err := common.SerializeBody(parsed)
	if err != nil {
		serialized = json.RawMessage(`null`)
	}
	return common.InvocationResponse{StatusCode: resp.StatusCode, Body: serialized}
}

func (s *Service) invokeLocal(req common.InvocationRequest) (common.InvocationResponse, error) {
	s.tracker.Push(s.localPeer, false)
	defer s.tracker.Pop(s.localPeer, false)

	resp, err := s.inv.Invoke(req)
	if err != nil {
		return common.InvocationResponse{}, err
	}
	return resp, nil
}

// ServeInbound answers a peer's relayed invocation request by running
// it against the local backend. Unlike Execute, it never returns a
// gateway-level error: a local backend failure is itself surfaced as a
// 500 response to the requesting peer.
func (s *Service) ServeInbound(name, method string, body []byte) (status uint16, respBody []byte) {
	fn, err := common.NewFunctionName(name)
	if err != nil {
		return http500, []byte("invalid function name")
	}
	httpMethod, ok := common.ValidMethod(method)
	if !ok {
		return http500, []byte("unsupported method")
	}

	req, err := common.NewInvocationRequest(fn, httpMethod, body)
	if err != nil {
		return http500, []byte(err.Error())
	}

	s.tracker.Push(s.localPeer, false)
	defer s.tracker.Pop(s.localPeer, false)

	resp, err := s.inv.Invoke(req)
	if err != nil {
		log.Error("local backend failed serving inbound peer request", "function", fn, "err", err)
		return http500, []byte("local backend invocation failed")
	}
	return resp.StatusCode, resp.Body
}

const http500 = 500

type remoteResult struct {
	resp common.InvocationResponse
	err  error
}

// raceRemote dispatches req to every provider in providers concurrently
// and returns the first success. Every dispatched request's Pop runs
// regardless of whether it wins the race, so tracker accounting stays
// exact even for requests whose result is discarded (spec.md §9,
// "pop-on-cancel").
func (s *Service) raceRemote(providers common.ProviderSet, req common.InvocationRequest) (common.InvocationResponse, error) {
	results := make(chan remoteResult, len(providers))

	for p := range providers {
		p := p
		s.tracker.Push(p, false)
		go func() {
			defer s.tracker.Pop(p, false)
			resp, err := s.mesh.RequestFunction(p, req.Name.String(), string(req.Method), req.Body)
			if err != nil {
				results <- remoteResult{err: err}
				return
			}
			results <- remoteResult{resp: common.InvocationResponse{StatusCode: resp.Status, Body: resp.Body}}
		}()
	}

	var lastErr error
	for i := 0; i < len(providers); i++ {
		r := <-results
		if r.err == nil {
			return r.resp, nil
		}
		lastErr = r.err
	}
	log.Warn("none of the providers responded", "function", req.Name, "err", lastErr)
	return common.InvocationResponse{}, common.ErrUnreachable
}

// ExecuteManyCall fans every item of items out to a provider of name,
// priming with not-yet-used providers before reusing the least-busy
// one, and returns results indexed identically to items.
func (s *Service) ExecuteManyCall(name common.FunctionName, items []json.RawMessage) ([]json.RawMessage, error) {
	providerIDs := s.mesh.GetProviders(name.String())
	if len(providerIDs) == 0 {
		return nil, common.ErrNotFound
	}
	providers := common.NewProviderSet(providerIDs...)
	notYetUsed := providers.Clone()
	var notYetUsedMu sync.Mutex

	results := make([]json.RawMessage, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))

	for i, item := range items {
		i, item := i, item
		go func() {
			defer wg.Done()

			notYetUsedMu.Lock()
			provider, _ := s.tracker.SelectAndPush(providers, notYetUsed)
			notYetUsedMu.Unlock()

			body := []byte(item)
			var status uint16
			var respBody []byte

			if provider == s.localPeer {
				resp, err := s.inv.Invoke(common.InvocationRequest{Name: name, Method: common.MethodPost, Body: body})
				if err != nil {
					log.Error("local backend failed during manycall", "function", name, "err", err)
					status, respBody = 500, []byte("Failed to get response from function")
				} else {
					status, respBody = resp.StatusCode, resp.Body
				}
			} else {
				resp, err := s.mesh.RequestFunction(provider, name.String(), string(common.MethodPost), body)
				if err != nil {
					log.Error("remote provider failed during manycall", "function", name, "peer", provider, "err", err)
					status, respBody = 500, []byte("Response from provider failed")
				} else {
					status, respBody = resp.Status, resp.Body
				}
			}

			s.tracker.Pop(provider, true)

			serialized := parseResponseBody(common.InvocationResponse{StatusCode: status, Body: respBody}).Body

			if status != 200 {
				wrapped, _ := json.Marshal(struct {
					Status uint16          `json:"status"`
					Body   json.RawMessage `json:"body"`
				}{Status: status, Body: serialized})
				results[i] = wrapped
			} else {
				results[i] = serialized
			}
		}()
	}

	wg.Wait()
	s.tracker.ReleaseBatch(providers)
	return results, nil
}

// DeployNew uploads a new function under a generated name and begins
// advertising it on the mesh.
func (s *Service) DeployNew(handler, requirements []byte) (common.FunctionName, error) {
	name, err := s.deployer.Deploy(handler, requirements, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDeployFailed, err)
	}
	if startErr := s.mesh.StartProviding(name.String()); startErr != nil {
		log.Warn("deployed but failed to announce on the mesh", "function", name, "err", startErr)
	}
	return name, nil
}

// DeployUpdate redeploys handler/requirements under an existing
// function name.
func (s *Service) DeployUpdate(name common.FunctionName, handler, requirements []byte) error {
	if _, err := s.deployer.Deploy(handler, requirements, name.String()); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDeployFailed, err)
	}
	if err := s.mesh.StartProviding(name.String()); err != nil {
		log.Warn("redeployed but failed to announce on the mesh", "function", name, "err", err)
	}
	return nil
}
