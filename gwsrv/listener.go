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
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sabouaram/wsgicore/gwerrors"
)

// acceptTimeout is set on the listening socket so the acceptor periodically
// wakes to check the ready flag and observe shutdown (§4.A, §4.H, §5).
const acceptTimeout = 1 * time.Second

// passiveListener is the subset of net.Listener this server needs, plus the
// deadline control both *net.TCPListener and *net.UnixListener implement.
type passiveListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// isUnixPath reports whether a bind address names a filesystem path rather
// than a host:port pair.
func isUnixPath(addr string) bool {
	if strings.HasPrefix(addr, "/") || strings.HasPrefix(addr, "./") || strings.HasPrefix(addr, "../") {
		return true
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		// Not a valid host:port — and not empty — treat as a path.
		return addr != "" && !strings.Contains(addr, ":")
	}
	return false
}

// bind creates the passive socket for cfg.Listen (§4.A). UNIX paths are
// unlinked and chmod'd best-effort before binding, matching the reference's
// os.unlink/os.chmod pair in CherryPyWSGIServer.start. TCP addresses are
// resolved and each candidate is bound with SO_REUSEADDR in order until one
// succeeds; if none binds (e.g. DNS failure), one retry is made on IPv4
// localhost, mirroring the reference's socket.gaierror handler.
func bind(cfg *Config) (passiveListener, gwerrors.Error) {
	if isUnixPath(cfg.Listen) {
		_ = os.Remove(cfg.Listen)

		l, err := net.Listen("unix", cfg.Listen)
		if err != nil {
			return nil, gwerrors.ErrorParent(ErrorNoSocket, err)
		}

		_ = os.Chmod(cfg.Listen, 0o777)

		ul, _ := l.(*net.UnixListener)
		return ul, nil
	}

	host, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		return nil, gwerrors.ErrorParent(ErrorNoSocket, err)
	}

	addr := net.JoinHostPort(host, port)

	lc := net.ListenConfig{Control: setReuseAddr}

	candidates := []string{addr}
	if host != "" {
		if ips, rerr := net.DefaultResolver.LookupHost(context.Background(), host); rerr == nil && len(ips) > 0 {
			candidates = candidates[:0]
			for _, ip := range ips {
				candidates = append(candidates, net.JoinHostPort(ip, port))
			}
		}
	}

	var (
		l    net.Listener
		lerr error
	)
	for _, c := range candidates {
		if l, lerr = lc.Listen(context.Background(), "tcp", c); lerr == nil {
			break
		}
	}
	if lerr != nil {
		// Probably a DNS issue with the host part — fall back to IPv4
		// localhost, exactly as the reference does on socket.gaierror.
		fallback := net.JoinHostPort("127.0.0.1", port)
		l, lerr = lc.Listen(context.Background(), "tcp", fallback)
		if lerr != nil {
			return nil, gwerrors.ErrorParent(ErrorNoSocket, lerr)
		}
	}

	tl, _ := l.(*net.TCPListener)
	return tl, nil
}
