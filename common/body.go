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

package common

import (
	"encoding/json"
	"strconv"
)

// BodyKind tags the detected shape of a raw backend response body, per
// the parsing rule in spec.md §6: try JSON, then integer, then float,
// then boolean, else raw string.
type BodyKind int

const (
	BodyJSON BodyKind = iota
	BodyInteger
	BodyFloat
	BodyBoolean
	BodyString
)

// ParsedBody is a raw byte payload tagged with its detected kind, ready
// for re-emission as a JSON value.
type ParsedBody struct {
	Kind  BodyKind
	JSON  json.RawMessage // set when Kind == BodyJSON
	Int   int64           // set when Kind == BodyInteger
	Float float64         // set when Kind == BodyFloat
	Bool  bool            // set when Kind == BodyBoolean
	Str   string          // set when Kind == BodyString
}

// DetectAndParseBody applies the detection order from spec.md §6 to a
// raw response body.
func DetectAndParseBody(body []byte) ParsedBody {
	trimmed := body
	var probe json.RawMessage
	if json.Valid(trimmed) {
		probe = append(json.RawMessage(nil), trimmed...)
		return ParsedBody{Kind: BodyJSON, JSON: probe}
	}

	s := string(body)

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ParsedBody{Kind: BodyInteger, Int: i}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ParsedBody{Kind: BodyFloat, Float: f}
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return ParsedBody{Kind: BodyBoolean, Bool: b}
	}
	return ParsedBody{Kind: BodyString, Str: s}
}

// SerializeBody re-emits a ParsedBody as a JSON value, preserving
// identity for JSON inputs and round-tripping ints/floats/bools as
// their native JSON types.
func SerializeBody(p ParsedBody) (json.RawMessage, error) {
	switch p.Kind {
	case BodyJSON:
		return p.JSON, nil
	case BodyInteger:
		return json.Marshal(p.Int)
	case BodyFloat:
		return json.Marshal(p.Float)
	case BodyBoolean:
		return json.Marshal(p.Bool)
	default:
		return json.Marshal(p.Str)
	}
}
