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
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sabouaram/wsgicore/gwapp"
)

var statusText = map[int]string{
	100: "Continue", 200: "OK", 201: "Created", 202: "Accepted",
	203: "Non-Authoritative Information", 204: "No Content", 205: "Reset Content",
	206: "Partial Content", 301: "Moved Permanently", 302: "Found",
	304: "Not Modified", 400: "Bad Request", 401: "Unauthorized",
	403: "Forbidden", 404: "Not Found", 405: "Method Not Allowed",
	411: "Length Required", 413: "Request Entity Too Large",
	500: "Internal Server Error", 501: "Not Implemented",
	505: "HTTP Version Not Supported",
}

func statusLine(code int, text string) string {
	if text == "" {
		text = statusText[code]
	}
	return fmt.Sprintf("%d %s", code, text)
}

// respond invokes the matched application and streams its response (§4.F,
// §4.G). Once the application has returned a body, its optional Close is
// invoked before returning. If the body iterates to the end without any
// write, the headers are sent then, unless the server is stopping.
func (r *Request) respond() error {
	defer func() { _ = r.conn.w.Flush() }()

	start := func(status string, header http.Header, exc error) (gwapp.WriteFunc, error) {
		return r.startResponse(status, header, exc)
	}

	body, err := r.app.Serve(r.environ, start)
	if err != nil {
		if !r.sentHeaders {
			return r.simpleResponse(500, err.Error())
		}
		// Headers already on the wire: no recovery possible, preserve
		// whatever bytes already went out and terminate (§7).
		r.closeConnection = true
		return nil
	}

	if closer, ok := body.(gwapp.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	for {
		chunk, nerr := body.Next()
		if nerr != nil {
			if nerr == io.EOF {
				break
			}
			return nerr
		}
		if _, werr := r.write(chunk); werr != nil {
			return werr
		}
	}

	if !r.sentHeaders && !r.conn.srv.stopping.Load() {
		r.sendHeaders()
	}

	return r.finishChunked()
}

// startResponse implements the gateway start_response contract (§4.F, §6).
func (r *Request) startResponse(status string, header http.Header, exc error) (gwapp.WriteFunc, error) {
	if exc != nil {
		if r.sentHeaders {
			return nil, exc
		}
		r.status = status
		r.respHeader = cloneHeader(header, r.respHeader)
		return r.write, nil
	}

	if r.startedResponse {
		return nil, fmt.Errorf("start_response called a second time without exc_info")
	}

	r.startedResponse = true
	r.status = status
	r.respHeader = cloneHeader(header, r.respHeader)
	return r.write, nil
}

func cloneHeader(h http.Header, keep http.Header) http.Header {
	out := http.Header{}
	// Preserve Connection: echo set during request parsing (§4.E step 9)
	// unless the application explicitly overrides it.
	if v := keep.Get("Connection"); v != "" {
		out.Set("Connection", v)
	}
	for k, vs := range h {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return out
}

// sendHeaders implements the deferred header-emission and transfer-framing
// selection of §4.F, steps 1-6.
func (r *Request) sendHeaders() {
	r.sentHeaders = true

	code := parseStatusCode(r.status)

	if r.reqMajorSupportsFraming() {
		switch {
		case code == 413:
			r.forceClose = true
			if r.respHeader.Get("Connection") == "" {
				r.respHeader.Set("Connection", "close")
			}

		case r.respHeader.Get("Content-Length") == "":
			switch code {
			case 200, 203, 206:
				r.chunkedWrite = true
				r.respHeader.Set("Transfer-Encoding", "chunked")
			case 204, 205, 304:
				// no body, no framing
			default:
				if code >= 100 && code < 200 {
					// 1xx: no body, no framing
				} else {
					r.forceClose = true
				}
			}
		}
	} else {
		r.forceClose = true
	}

	if (r.forceClose || r.closeConnection) && r.respHeader.Get("Connection") == "" {
		r.respHeader.Set("Connection", "close")
	}
	if r.forceClose {
		r.closeConnection = true
	}

	if r.respHeader.Get("Date") == "" {
		r.respHeader.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if r.respHeader.Get("Server") == "" {
		r.respHeader.Set("Server", r.conn.srv.cfg.ServerToken)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\r\n", r.responseProto, r.status)
	for k, vs := range r.respHeader {
		for _, v := range vs {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")

	_, _ = r.conn.w.WriteString(b.String())
}

// reqMajorSupportsFraming reports whether the negotiated response protocol
// is HTTP/1.1+ (chunked framing is an HTTP/1.1 feature, §4.F step 2).
func (r *Request) reqMajorSupportsFraming() bool {
	return r.reqMajor == 1 && r.resMinor >= 1
}

func parseStatusCode(status string) int {
	if len(status) < 3 {
		return 0
	}
	n, _ := strconv.Atoi(status[:3])
	return n
}

// write is the gateway write(chunk) callable (§4.F). The first call sends
// deferred headers.
func (r *Request) write(chunk []byte) (int, error) {
	if !r.sentHeaders {
		r.sendHeaders()
	}

	if r.chunkedWrite {
		if len(chunk) == 0 {
			return 0, nil
		}
		if _, err := fmt.Fprintf(r.conn.w, "%x\r\n", len(chunk)); err != nil {
			return 0, err
		}
		if _, err := r.conn.w.Write(chunk); err != nil {
			return 0, err
		}
		if _, err := r.conn.w.WriteString("\r\n"); err != nil {
			return 0, err
		}
		return len(chunk), nil
	}

	return r.conn.w.Write(chunk)
}

// finishChunked emits the terminator once the body iterator completes, if
// chunked framing was selected.
func (r *Request) finishChunked() error {
	if !r.chunkedWrite {
		return nil
	}
	_, err := r.conn.w.WriteString("0\r\n\r\n")
	return err
}

// simpleResponse bypasses the gateway path for parser-internal errors
// (§4.F "simple_response").
func (r *Request) simpleResponse(code int, msg string) error {
	proto := r.responseProto
	if proto == "" {
		proto = r.conn.srv.cfg.Protocol
	}

	body := msg
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(len(body)))

	if code == 413 || r.closeConnection {
		header.Set("Connection", "close")
		r.closeConnection = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\r\n", proto, statusLine(code, ""))
	for k, vs := range header {
		for _, v := range vs {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")
	b.WriteString(body)

	if _, err := r.conn.w.WriteString(b.String()); err != nil {
		return err
	}
	r.sentHeaders = true
	return r.conn.w.Flush()
}

// tryEmergency500 is the best-effort 500 of §4.D / §7, used when an
// unexpected fault strikes before or during application dispatch. Errors
// writing it are ignored — the connection is being torn down regardless.
func (r *Request) tryEmergency500() {
	if r.sentHeaders {
		return
	}
	_ = r.simpleResponse(500, "Internal Server Error")
}
