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

// CodeError is a numeric error code, namespaced per package by a
// MinPkg* offset so that codes from different packages of the module
// never collide.
type CodeError uint16

// Message renders a human-readable string for a CodeError. Packages
// register their own via RegisterIdFctMessage.
type Message func(code CodeError) (message string)

const (
	// UnknownError is the zero value: no specific code was assigned.
	UnknownError CodeError = 0

	// Package offsets, one per package that raises gwerrors.Error values.
	MinPkgGatewayCore  CodeError = 100
	MinPkgGatewayMount CodeError = 120
	MinPkgGatewayTLS   CodeError = 140
)

func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

var idMsgFct = make(map[CodeError]Message)

// RegisterIdFctMessage registers the message function responsible for every
// code at or above the given base offset. Each package calls this once from
// its init() with its own getMessage switch.
func RegisterIdFctMessage(base CodeError, fct Message) {
	idMsgFct[base] = fct
}

// ExistInMapMessage reports whether a message function is already
// registered for the given base offset. Nothing in this module calls it; a
// package init can use it to detect double-registration.
func ExistInMapMessage(base CodeError) bool {
	_, ok := idMsgFct[base]
	return ok
}

func getMessage(code CodeError) string {
	if code == UnknownError {
		return "unknown error"
	}

	var (
		best    CodeError
		bestFct Message
		found   bool
	)

	for base, fct := range idMsgFct {
		if code >= base && (!found || base > best) {
			best, bestFct, found = base, fct, true
		}
	}

	if found && bestFct != nil {
		if m := bestFct(code); m != "" {
			return m
		}
	}

	return ""
}
