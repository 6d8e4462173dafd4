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
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sabouaram/wsgicore/certificates"
	"github.com/sabouaram/wsgicore/gwerrors"
)

// Server is the explicit lifecycle controller of §4.H, replacing the
// reference's global sentinels and write-through `interrupt` property
// (§9 design note 2) with atomically-observed ready/interrupt fields the
// acceptor and workers read without a lock.
type server struct {
	cfg    *Config
	mounts *mountTable

	listener passiveListener
	tlsCfg   certificates.TLSConfig
	watcher  *certWatcher

	queue     *connQueue
	workersWG *sync.WaitGroup

	ready     atomic.Bool
	stopping  atomic.Bool
	interrupt atomic.Value // stores error

	stopOnce sync.Once
}

// newServer validates cfg, applies defaults, and returns an unstarted
// server. Call Start to bind and begin serving.
func newServer(cfg *Config) (*server, gwerrors.Error) {
	if cfg == nil {
		return nil, gwerrors.New(ErrorConfigEmpty)
	}

	cfg.applyDefaults()
	if verr := cfg.Validate(); verr != nil {
		return nil, verr
	}

	return &server{
		cfg:    cfg,
		mounts: newMountTable(cfg.Mounts),
		queue:  newConnQueue(cfg.MaxQueue),
	}, nil
}

// Start binds the listener, spawns the worker pool, marks the server ready,
// and blocks in the accept loop until Stop is called or a fatal error is
// observed (§4.H `start`). It mirrors the reference's behaviour of being
// called once from the thread that will also serve as the acceptor.
func (s *server) Start() gwerrors.Error {
	if s.ready.Load() {
		return gwerrors.New(ErrorAlreadyStarted)
	}

	l, lerr := bind(s.cfg)
	if lerr != nil {
		return lerr
	}
	s.listener = l

	if s.cfg.TLS != nil && s.cfg.TLS.CertFile != "" && s.cfg.TLS.KeyFile != "" {
		tc := certificates.New()
		if err := tc.Load(*s.cfg.TLS); err != nil {
			return gwerrors.ErrorParent(ErrorListen, err)
		}
		s.tlsCfg = tc

		if w, werr := newCertWatcher(*s.cfg.TLS, tc, s.cfg.Logger); werr == nil {
			s.watcher = w
		}
	}

	s.startWorkers()
	s.ready.Store(true)

	for s.ready.Load() {
		if err := s.tick(); err != nil {
			s.fail(err)
			break
		}
	}

	if v := s.interrupt.Load(); v != nil {
		if err, ok := v.(error); ok && err != nil {
			return gwerrors.ErrorParent(ErrorAccept, err)
		}
	}

	return nil
}

// tick accepts one connection with a short deadline so the acceptor
// periodically re-checks `ready` (§4.H `tick`, §5).
func (s *server) tick() error {
	if err := s.listener.SetDeadline(deadlineFrom(acceptTimeout)); err != nil {
		return nil
	}

	rawConn, err := s.listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		if isShutdownRace(err) {
			return nil
		}
		return err
	}

	var conn net.Conn = rawConn
	if s.tlsCfg != nil {
		tlsConn := tls.Server(rawConn, s.tlsCfg.TlsConfig(s.cfg.ServerName))
		conn = newTLSStream(tlsConn)
	}

	s.queue.put(newConnection(s, conn))
	return nil
}

// fail stores a fatal error and stops the server, mirroring the reference's
// write-through `interrupt` property (§4.H, §9 design note 2) but as an
// explicit method instead of a property side effect.
func (s *server) fail(err error) {
	s.interrupt.Store(err)
	s.Stop()
}

// Stop implements §4.H `stop`: idempotent (P8), releases the listening
// socket, force-unblocks any in-flight Accept with a short self-connection,
// and dissolves the worker pool with one SHUTDOWN sentinel per worker.
func (s *server) Stop() {
	s.stopOnce.Do(func() {
		s.ready.Store(false)
		s.stopping.Store(true)

		s.selfConnectUnblock()

		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.watcher != nil {
			_ = s.watcher.Close()
		}

		if s.workersWG != nil {
			for i := 0; i < s.cfg.NumThreads; i++ {
				s.queue.putShutdown()
			}
			s.workersWG.Wait()
		}
	})
}

// selfConnectUnblock dials the bound address briefly so a blocked Accept
// wakes immediately instead of waiting out the accept timeout (§4.H). It
// never dials the wildcard address, resolving to an actual local address
// first, and is a no-op for UNIX-domain sockets (Accept there returns
// promptly on Close already).
func (s *server) selfConnectUnblock() {
	if s.listener == nil {
		return
	}

	addr := s.listener.Addr()
	if addr.Network() == "unix" {
		return
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	c, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 250*time.Millisecond)
	if err == nil {
		_ = c.Close()
	}
}

