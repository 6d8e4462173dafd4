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

package gwsrv

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// isClientGone classifies a connection-level error as one of the "client
// disappeared" cases that §7 says to swallow silently rather than
// propagate: broken pipe, reset, unreachable host, or a plain I/O timeout.
// The reference implementation (cherrypy's wsgiserver.py) does this by
// string-matching errno names; per spec.md §9 design note 3 this classifies
// against typed platform errno constants instead, falling back to a
// substring match only for the literal "timed out" case Go's net package
// surfaces as plain text rather than an errno.
func isClientGone(err error) bool {
	if err == nil {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var se syscall.Errno
	if errors.As(err, &se) && isClientGoneErrno(se) {
		return true
	}

	return strings.Contains(err.Error(), "timed out")
}

// isShutdownRace reports whether an accept(2) failure is the benign race
// between Server.Stop closing the listener and an in-flight Accept — these
// are ignored by tick() per §4.H rather than propagated.
func isShutdownRace(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "bad file descriptor") ||
		strings.Contains(msg, "socket operation on non-socket") ||
		strings.Contains(msg, "resource temporarily unavailable")
}
