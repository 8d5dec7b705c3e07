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

// Package deploy stages a function's handler and requirements files and
// drives the external faas-cli binary to publish them to the OpenFaaS
// gateway this node's Invoker talks to.
package deploy

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/probeum/faasmesh/common"
	"github.com/probeum/faasmesh/xlog"
)

const (
	templatePath  = "openfaas_config_template.yml"
	configPath    = "openfaas_config.yml"
	handlerDir    = "openfaas_handler"
	handlerFile   = "handler.py"
	requirements  = "requirements.txt"
	preservedFile = "tox.ini"
)

var log = xlog.New("deploy")

// Deployer owns the docker_username substituted into every rendered
// openfaas config.
type Deployer struct {
	dockerUsername string
}

// New returns a Deployer that publishes images under dockerUsername.
func New(dockerUsername string) *Deployer {
	return &Deployer{dockerUsername: dockerUsername}
}

// Deploy stages handler/requirements, renders the config template, and
// invokes "faas-cli up". If name is empty a name of the form "fn-<uuid>"
// is generated. On any failure after staging begins, files are cleaned
// up (tox.ini excepted) before the error is returned.
func (d *Deployer) Deploy(handler, requirements []byte, name string) (common.FunctionName, error) {
	functionName := name
	if functionName == "" {
		functionName = fmt.Sprintf("fn-%s", uuid.New().String())
	}

	if err := renderConfig(templatePath, configPath, []string{functionName, d.dockerUsername, functionName}); err != nil {
		log.Error("failed to create config file", "err", err)
		return "", err
	}

	if err := d.stageFiles(handler, requirements); err != nil {
		log.Error("failed to stage handler files", "err", err)
		_ = d.removeFiles()
		return "", err
	}

	cmd := exec.Command("faas-cli", "up", "-f", configPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error("failed to deploy function", "err", err, "output", string(output))
		_ = d.removeFiles()
		return "", fmt.Errorf("faas-cli up failed: %w", err)
	}

	log.Info("function deployed successfully", "function", functionName)
	_ = d.removeFiles()

	fn, err := common.NewFunctionName(functionName)
	if err != nil {
		return "", err
	}
	return fn, nil
}

func (d *Deployer) stageFiles(handler, requirementsBody []byte) error {
	if err := os.MkdirAll(handlerDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(handlerDir, handlerFile), handler, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(handlerDir, requirements), requirementsBody, 0o644)
}

// removeFiles clears every file in handlerDir except tox.ini, and
// removes the rendered config, matching the cleanup contract every
// deployment attempt (successful or not) must honor.
func (d *Deployer) removeFiles() error {
	entries, err := os.ReadDir(handlerDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == preservedFile {
			continue
		}
		if err := os.Remove(filepath.Join(handlerDir, e.Name())); err != nil {
			return err
		}
	}
	return os.Remove(configPath)
}
