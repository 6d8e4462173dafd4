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

import "github.com/sabouaram/wsgicore/gwerrors"

// Server is the lifecycle surface a caller drives: Start binds and serves
// until Stop is called (or a fatal fault propagates), Stop is idempotent
// (P8), and IsReady reports the controller's current state.
type Server interface {
	Start() gwerrors.Error
	Stop()
	IsReady() bool
}

// NewServer validates cfg, applies its defaults, and returns an unstarted
// Server (§2, §4.H). Call Start on the goroutine meant to act as the
// acceptor; it blocks until Stop is called.
func NewServer(cfg *Config) (Server, gwerrors.Error) {
	return newServer(cfg)
}

func (s *server) IsReady() bool {
	return s.ready.Load()
}
