// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"path"
	"strings"
)

// PathElement is a component of a URL path.
type PathElement interface {
	pathElement() string
}

// PathSegment is a static component of a URL path.
type PathSegment string

func (s PathSegment) pathElement() string {
	return string(s)
}

type pathParam struct {
	name string
	opts []ParameterOption
}

// PathParam is a dynamic component of a URL path. It is declared as a
// required path parameter of every operation registered under it.
func PathParam(name string, opts ...ParameterOption) PathElement {
	return pathParam{
		name: name,
		opts: opts,
	}
}

func (p pathParam) pathElement() string {
	return "{" + p.name + "}"
}

// Path is a URL path made of static segments and path parameters.
type Path []PathElement

// BasePath starts a [Path] at s, e.g. "/books" or "/api/v1/books".
func BasePath(s string) Path {
	return Path{PathSegment("/" + strings.Trim(s, "/"))}
}

// Segment returns a copy of p extended by a static segment.
func (p Path) Segment(s string) Path {
	return append(p[:len(p):len(p)], PathSegment(s))
}

// Param returns a copy of p extended by a path parameter.
func (p Path) Param(name string, opts ...ParameterOption) Path {
	return append(p[:len(p):len(p)], PathParam(name, opts...))
}

func (p Path) params() []pathParam {
	var ps []pathParam
	for _, el := range p {
		if pp, ok := el.(pathParam); ok {
			ps = append(ps, pp)
		}
	}
	return ps
}

// String joins the path elements with slashes. Path parameters are
// rendered as {name}.
func (p Path) String() string {
	ss := make([]string, len(p))
	for i, el := range p {
		ss[i] = el.pathElement()
	}
	return path.Join(ss...)
}
