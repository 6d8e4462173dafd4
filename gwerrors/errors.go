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

package gwerrors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error is the interface every error value raised by this module satisfies.
type Error interface {
	error

	Code() CodeError
	AddParent(parent ...error)
	HasParent() bool
	Parents() []Error
	GetTrace() string
}

type ers struct {
	c CodeError
	e string
	p []Error
	t runtime.Frame
}

// New creates an Error for the given code, capturing the caller's frame.
func New(code CodeError) Error {
	return newWithSkip(code, 2)
}

// ErrorParent creates an Error for the given code wrapping a plain error as
// its single parent (used when an external/stdlib error must be folded in).
func ErrorParent(code CodeError, parent error) Error {
	er := newWithSkip(code, 2)
	if parent != nil {
		er.AddParent(parent)
	}
	return er
}

func newWithSkip(code CodeError, skip int) *ers {
	var fr runtime.Frame

	if pc, _, _, ok := runtime.Caller(skip); ok {
		frames := runtime.CallersFrames([]uintptr{pc})
		fr, _ = frames.Next()
	}

	return &ers{
		c: code,
		e: getMessage(code),
		t: fr,
	}
}

func (e *ers) Code() CodeError {
	return e.c
}

func (e *ers) AddParent(parent ...error) {
	for _, v := range parent {
		if v == nil {
			continue
		}

		if er, ok := v.(Error); ok {
			e.p = append(e.p, er)
		} else {
			e.p = append(e.p, &ers{e: v.Error()})
		}
	}
}

func (e *ers) HasParent() bool {
	return len(e.p) > 0
}

func (e *ers) Parents() []Error {
	return e.p
}

func (e *ers) GetTrace() string {
	if e.t.File != "" {
		return fmt.Sprintf("%s#%d", e.t.File, e.t.Line)
	}
	return ""
}

func (e *ers) Error() string {
	var parts []string

	if e.e != "" {
		parts = append(parts, e.e)
	}

	for _, p := range e.p {
		if s := p.Error(); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, ": ")
}
