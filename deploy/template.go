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

package deploy

import (
	"os"
	"strings"
)

const placeholder = "{}"

// renderConfig reads the template at templatePath and substitutes each
// occurrence of "{}" left to right with the corresponding entry of
// values, writing the result to outputPath. The template is expected to
// carry exactly len(values) placeholders.
func renderConfig(templatePath, outputPath string, values []string) error {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return err
	}

	result := string(content)
	for _, v := range values {
		result = strings.Replace(result, placeholder, v, 1)
	}

	return os.WriteFile(outputPath, []byte(result), 0o644)
}
