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

package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/probeum/faasmesh/functions"
)

const basePath = "/api/v1"

// NewServer builds the HTTP ingress: an httprouter route table per
// spec.md §6 (plus the one deployment route matched ahead of it),
// wrapped in a permissive CORS handler matching the teacher's
// gateway-facing API.
func NewServer(svc *functions.Service) http.Handler {
	h := &Handlers{svc: svc}
	r := httprouter.New()

	r.POST(basePath+"/functions/:name/executions", h.executeFunction)
	r.POST(basePath+"/functions/:name/executions/manycall", h.executeManyCall)
	r.PUT(basePath+"/functions/deployments/:name", h.updateDeployment)

	// httprouter refuses a static segment beside the :name wildcard in the
	// same position, so POST .../functions/deployments is matched here.
	deployPath := basePath + "/functions/deployments"
	routes := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost && req.URL.Path == deployPath {
			h.deployFunction(w, req, nil)
			return
		}
		r.ServeHTTP(w, req)
	})

	return cors.Default().Handler(routes)
}

// Listen starts the HTTP ingress on port and blocks until it exits.
func Listen(port string, svc *functions.Service) error {
	log.Info("starting http ingress", "port", port)
	return http.ListenAndServe(":"+port, NewServer(svc))
}
