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
	"bufio"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/wsgicore/gwapp"
)

// Connection owns one accepted socket for its whole lifetime: the buffered
// read/write streams layered over it, and the template of environment
// entries shared by every request the socket carries (§3 "Connection").
type Connection struct {
	srv *server

	rwc net.Conn
	r   *bufio.Reader
	w   *bufio.Writer

	id string

	scheme     string
	serverPort string
	remoteAddr string
	remotePort string

	tlsEntries map[string]interface{}
}

func newConnection(srv *server, rwc net.Conn) *Connection {
	c := &Connection{
		srv: srv,
		rwc: rwc,
		r:   bufio.NewReader(rwc),
		w:   bufio.NewWriter(rwc),
		id:  uuid.NewString(),
	}

	c.scheme = "http"

	if host, port, err := net.SplitHostPort(rwc.RemoteAddr().String()); err == nil {
		c.remoteAddr, c.remotePort = host, port
	} else {
		c.remoteAddr = rwc.RemoteAddr().String()
	}

	if _, port, err := net.SplitHostPort(rwc.LocalAddr().String()); err == nil {
		c.serverPort = port
	}

	if _, ok := rwc.(*tlsStream); ok {
		c.scheme = "https"
		var leaf *x509.Certificate
		if srv.tlsCfg != nil {
			leaf = srv.tlsCfg.Leaf()
		}
		c.tlsEntries = tlsCertEnviron(leaf)
	}

	return c
}

// tlsCertEnviron derives the SSL_SERVER_* environment entries from the
// server's own configured certificate (§4.A, §6), mirroring the reference's
// populate_ssl_environ(wsgiserver.py:939), which also reads the server's
// certificate rather than the peer's. This must not read
// tls.Conn.ConnectionState() here: newConnection runs immediately after
// Accept, before crypto/tls's lazy handshake has happened on first Read, so
// the per-connection state would still be zero.
func tlsCertEnviron(cert *x509.Certificate) map[string]interface{} {
	out := map[string]interface{}{"HTTPS": "on"}

	if cert == nil {
		return out
	}

	out["SSL_SERVER_VERSION"] = fmt.Sprintf("%d", cert.Version)
	out["SSL_SERVER_SERIAL"] = cert.SerialNumber.String()
	out["SSL_SERVER_I_DN"] = dnToString(cert.Issuer)
	out["SSL_SERVER_S_DN"] = dnToString(cert.Subject)

	for k, v := range dnAttributes("I", cert.Issuer) {
		out[k] = v
	}
	for k, v := range dnAttributes("S", cert.Subject) {
		out[k] = v
	}

	return out
}

// dnToString renders a distinguished name as "/k1=v1/k2=v2" in the order of
// the certificate's attribute sequence (§4.A). Values come from the parsed
// name, not from a string, so a slash inside a value is copied as-is.
func dnToString(name pkix.Name) string {
	var b strings.Builder
	for _, rdn := range name.Names {
		fmt.Fprintf(&b, "/%s=%v", shortAttr(rdn.Type.String()), rdn.Value)
	}
	return b.String()
}

// dnAttributes exposes each DN attribute as its own SSL_SERVER_{I,S}_DN_<k>
// entry. Each attribute is read from the parsed name, so a slash inside a
// value never splits an attribute in two; when an attribute type repeats,
// the last one wins.
func dnAttributes(side string, name pkix.Name) map[string]interface{} {
	out := make(map[string]interface{})
	for _, rdn := range name.Names {
		key := fmt.Sprintf("SSL_SERVER_%s_DN_%s", side, strings.ToUpper(shortAttr(rdn.Type.String())))
		out[key] = fmt.Sprintf("%v", rdn.Value)
	}
	return out
}

func shortAttr(oid string) string {
	switch oid {
	case "2.5.4.3":
		return "CN"
	case "2.5.4.6":
		return "C"
	case "2.5.4.7":
		return "L"
	case "2.5.4.8":
		return "ST"
	case "2.5.4.10":
		return "O"
	case "2.5.4.11":
		return "OU"
	default:
		return oid
	}
}

// environTemplate builds the fixed entries every Request on this connection
// starts from (§3). Per-request overlays are applied on a copy, never on
// this map, so one request's environment can never leak into the next
// (§9 design note "dynamic environment template").
func (c *Connection) environTemplate() gwapp.Environ {
	e := gwapp.Environ{
		"wsgi.version":      [2]int{1, 0},
		"wsgi.url_scheme":   c.scheme,
		"wsgi.multithread":  true,
		"wsgi.multiprocess": false,
		"wsgi.run_once":     false,
		"wsgi.errors":       errorStream{c.srv.cfg.Logger},
		"SERVER_NAME":       c.srv.cfg.ServerName,
		"SERVER_PORT":       c.serverPort,
		"REMOTE_ADDR":       c.remoteAddr,
		"REMOTE_PORT":       c.remotePort,
	}

	for k, v := range c.tlsEntries {
		e[k] = v
	}

	return e
}

// errorStream adapts gwlog.Logger to io.Writer for wsgi.errors.
type errorStream struct {
	log interface {
		Warnf(format string, args ...interface{})
	}
}

func (s errorStream) Write(p []byte) (int, error) {
	s.log.Warnf("%s", string(p))
	return len(p), nil
}

func deadlineFrom(d time.Duration) time.Time {
	return time.Now().Add(d)
}

// serve drives the connection's request/response loop until a request asks
// to close, parsing fails, or an unrecoverable error occurs (§4.D). It
// always releases the socket on return.
func (c *Connection) serve() {
	defer c.close()

	for {
		if err := c.rwc.SetDeadline(deadlineFrom(c.srv.cfg.Timeout)); err != nil {
			return
		}

		req := newRequest(c)

		if err := c.runOne(req); err != nil {
			if !isClientGone(err) {
				c.srv.cfg.Logger.Warnf("connection %s: %v", c.id, err)
				req.tryEmergency500()
			}
			return
		}

		if !req.ready || req.closeConnection {
			return
		}
	}
}

// runOne parses and responds to exactly one request, recovering an
// application panic into a best-effort 500 the same way an unexpected
// socket fault is handled (§4.D, §7 "Application exception").
func (c *Connection) runOne(req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.srv.cfg.Logger.Errorf("connection %s: application panic: %v", c.id, r)
			req.tryEmergency500()
			req.closeConnection = true
		}
	}()

	if perr := req.parse(); perr != nil {
		return perr
	}
	if !req.ready {
		return nil
	}

	return req.respond()
}

func (c *Connection) close() {
	_ = c.w.Flush()
	_ = c.rwc.Close()
}
