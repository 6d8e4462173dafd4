/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package gwapp defines the gateway application contract: the boundary
// between the wire-level core (gwsrv) and whatever handles a request once
// it has been parsed and routed. It is the Go shape of a WSGI application
// callable.
package gwapp

import (
	"io"
	"net/http"
)

// Environ carries one request's per-call environment, built fresh by the
// core for every request from its connection template plus request-derived
// overlays. See the environ entry table in SPEC_FULL.md §6.
type Environ map[string]interface{}

// WriteFunc writes one unbuffered chunk of response body.
type WriteFunc func(chunk []byte) (int, error)

// StartResponseFunc begins the HTTP response. Calling it a second time
// without exc is a contract violation; calling it with exc after headers
// have already been sent must re-raise exc to the caller.
type StartResponseFunc func(status string, header http.Header, exc error) (WriteFunc, error)

// Body is the iterable of response body chunks an Application returns.
type Body interface {
	// Next returns the next chunk, or io.EOF when the body is exhausted.
	Next() ([]byte, error)
}

// Closer is implemented optionally by a Body that holds a resource (a file,
// a cursor) which must be released once the core is done iterating it.
type Closer interface {
	Close() error
}

// Application is the gateway application callable. Serve is invoked once
// per request; it must call start exactly once (unless re-raising through
// exc) before or while producing body chunks.
type Application interface {
	Serve(environ Environ, start StartResponseFunc) (Body, error)
}

// ApplicationFunc adapts a plain function to Application.
type ApplicationFunc func(environ Environ, start StartResponseFunc) (Body, error)

func (f ApplicationFunc) Serve(environ Environ, start StartResponseFunc) (Body, error) {
	return f(environ, start)
}

// SliceBody adapts a fixed slice of chunks to Body, for simple applications
// that build their whole response in memory (the Go equivalent of a Python
// WSGI app returning a list of byte strings).
type SliceBody struct {
	chunks [][]byte
	pos    int
}

func NewSliceBody(chunks ...[]byte) *SliceBody {
	return &SliceBody{chunks: chunks}
}

func (b *SliceBody) Next() ([]byte, error) {
	if b.pos >= len(b.chunks) {
		return nil, io.EOF
	}
	c := b.chunks[b.pos]
	b.pos++
	return c, nil
}
