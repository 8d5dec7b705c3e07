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

// Package api is the HTTP ingress (component F): it validates method
// strings and batch shape, forwards to the Functions Service, and maps
// its errors onto client status codes.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/probeum/faasmesh/common"
	"github.com/probeum/faasmesh/functions"
	"github.com/probeum/faasmesh/xlog"
)

var log = xlog.New("api")

// Handlers holds the dependency the route table needs.
type Handlers struct {
	svc *functions.Service
}

type executionRequest struct {
	HTTPMethod   string          `json:"http_method"`
	Body         json.RawMessage `json:"body,omitempty"`
	PathAndQuery string          `json:"path_and_query,omitempty"`
}

func (h *Handlers) executeFunction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	fn, err := common.NewFunctionName(name)
	if err != nil {
		writeError(w, err)
		return
	}

	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrBadRequest)
		return
	}

	method, ok := common.ValidMethod(req.HTTPMethod)
	if !ok {
		writeError(w, common.ErrBadRequest)
		return
	}

	if req.PathAndQuery != "" {
		fn = common.FunctionName(fn.String() + req.PathAndQuery)
	}

	var body []byte
	if len(req.Body) > 0 {
		body = []byte(req.Body)
	}

	invReq, err := common.NewInvocationRequest(fn, method, body)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.Execute(invReq)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(int(resp.StatusCode))
	_, _ = w.Write(resp.Body)
}

type manyCallRequest struct {
	Items []json.RawMessage `json:"items"`
}

type manyCallResponse struct {
	Results []json.RawMessage `json:"results"`
}

func (h *Handlers) executeManyCall(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fn, err := common.NewFunctionName(ps.ByName("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req manyCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Items == nil {
		writeError(w, common.ErrBadRequest)
		return
	}

	results, err := h.svc.ExecuteManyCall(fn, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(manyCallResponse{Results: results})
}

const (
	maxDeployBodyBytes = 64 << 20
	fieldHandler       = "handler"
	fieldRequirements  = "requirements"
)

func readMultipartFiles(w http.ResponseWriter, r *http.Request) (handler, requirements []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDeployBodyBytes)
	if err = r.ParseMultipartForm(maxDeployBodyBytes); err != nil {
		return nil, nil, err
	}

	handler, err = readFormFile(r, fieldHandler)
	if err != nil {
		return nil, nil, err
	}
	requirements, err = readFormFile(r, fieldRequirements)
	if err != nil {
		return nil, nil, err
	}
	return handler, requirements, nil
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handlers) deployFunction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	handler, requirements, err := readMultipartFiles(w, r)
	if err != nil {
		writeError(w, common.ErrDeployFailed)
		return
	}

	name, err := h.svc.DeployNew(handler, requirements)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"name": name.String()})
}

func (h *Handlers) updateDeployment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fn, err := common.NewFunctionName(ps.ByName("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	handler, requirements, err := readMultipartFiles(w, r)
	if err != nil {
		writeError(w, common.ErrDeployFailed)
		return
	}

	if err := h.svc.DeployUpdate(fn, handler, requirements); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"name": fn.String()})
}
