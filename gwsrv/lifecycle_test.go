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
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/wsgicore/gwapp"
	"github.com/sabouaram/wsgicore/gwlog"
)

// helloApp writes its response across two body chunks without setting a
// Content-Length, exercising the chunked-response path end to end.
func helloApp(environ gwapp.Environ, start gwapp.StartResponseFunc) (gwapp.Body, error) {
	h := http.Header{}
	h.Set("Content-Type", "text/plain")
	if _, err := start("200 OK", h, nil); err != nil {
		return nil, err
	}
	return gwapp.NewSliceBody([]byte("Hello, "), []byte("World!")), nil
}

// echoApp reads the whole request body and writes it back as one chunk with
// an explicit Content-Length, exercising chunked-request decoding.
func echoApp(environ gwapp.Environ, start gwapp.StartResponseFunc) (gwapp.Body, error) {
	body, _ := environ["wsgi.input"].(io.Reader)
	data, _ := io.ReadAll(body)

	h := http.Header{}
	h.Set("Content-Length", itoa(len(data)))
	if _, err := start("200 OK", h, nil); err != nil {
		return nil, err
	}
	return gwapp.NewSliceBody(data), nil
}

// pathEchoApp writes PATH_INFO back verbatim, for exercising %2F preservation.
func pathEchoApp(environ gwapp.Environ, start gwapp.StartResponseFunc) (gwapp.Body, error) {
	p, _ := environ["PATH_INFO"].(string)
	h := http.Header{}
	h.Set("Content-Length", itoa(len(p)))
	if _, err := start("200 OK", h, nil); err != nil {
		return nil, err
	}
	return gwapp.NewSliceBody([]byte(p)), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// startTestServer boots a server on an OS-assigned loopback port and returns
// it once the accept loop is ready, along with a teardown func.
func startTestServer(mounts []Mount) (*server, func()) {
	cfg := &Config{
		Listen:     "127.0.0.1:0",
		Mounts:     mounts,
		NumThreads: 2,
		Timeout:    2 * time.Second,
		Logger:     gwlog.New(nil),
	}

	srv, err := newServer(cfg)
	Expect(err).ToNot(HaveOccurred())

	go func() { _ = srv.Start() }()

	Eventually(srv.IsReady, "2s", "10ms").Should(BeTrue())

	return srv, func() { srv.Stop() }
}

func dial(srv *server) net.Conn {
	conn, err := net.DialTimeout("tcp", srv.listener.Addr().String(), time.Second)
	Expect(err).ToNot(HaveOccurred())
	Expect(conn.SetDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
	return conn
}

// readResponseHead reads the status line and headers (stopping at the blank
// line), leaving br positioned at the start of the body.
func readResponseHead(br *bufio.Reader) (string, http.Header) {
	status, err := br.ReadString('\n')
	Expect(err).ToNot(HaveOccurred())
	status = strings.TrimRight(status, "\r\n")

	h := http.Header{}
	for {
		line, err := br.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		Expect(idx).To(BeNumerically(">=", 0))
		name := http.CanonicalHeaderKey(strings.TrimSpace(line[:idx]))
		h.Add(name, strings.TrimSpace(line[idx+1:]))
	}
	return status, h
}

var _ = Describe("[TC-E2E] end-to-end wire behavior", func() {
	It("[TC-E2E-001] serves a simple GET as a chunked response", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(helloApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		status, h := readResponseHead(br)
		Expect(status).To(Equal("HTTP/1.1 200 OK"))
		Expect(h.Get("Transfer-Encoding")).To(Equal("chunked"))

		body, _, err := decodeChunked(br)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("Hello, World!"))
	})

	It("[TC-E2E-002] pipelines two requests over one keep-alive connection", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(helloApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		req := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
		_, err := conn.Write([]byte(req + req))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		for i := 0; i < 2; i++ {
			status, h := readResponseHead(br)
			Expect(status).To(Equal("HTTP/1.1 200 OK"))
			Expect(h.Get("Connection")).To(Equal("Keep-Alive"))

			body, _, err := decodeChunked(br)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(body)).To(Equal("Hello, World!"))
		}
	})

	It("[TC-E2E-003] decodes a chunked request body and echoes it back", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(echoApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		req := "POST /upload HTTP/1.1\r\nHost: example.com\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
			"5\r\nhello\r\n0\r\n\r\n"
		_, err := conn.Write([]byte(req))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		status, h := readResponseHead(br)
		Expect(status).To(Equal("HTTP/1.1 200 OK"))

		n := h.Get("Content-Length")
		Expect(n).To(Equal("5"))

		buf := make([]byte, 5)
		_, err = io.ReadFull(br, buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf)).To(Equal("hello"))
	})

	It("[TC-E2E-004] responds 411 to a POST with no Content-Length and no chunking", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(echoApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		_, err := conn.Write([]byte("POST /upload HTTP/1.1\r\nHost: example.com\r\n\r\n"))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		status, _ := readResponseHead(br)
		Expect(status).To(Equal("HTTP/1.1 411 Length Required"))
	})

	It("[TC-E2E-004b] puts the original reason in the body, not the status line", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(echoApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		_, err := conn.Write([]byte("POST /upload HTTP/1.1\r\nHost: example.com\r\n\r\n"))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		_, h := readResponseHead(br)
		Expect(h.Get("Content-Length")).To(Equal("15"))

		body := make([]byte, 15)
		_, err = io.ReadFull(br, body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("Length Required"))
	})

	It("[TC-E2E-005] responds 501 to an unsupported transfer-coding", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(echoApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		req := "POST /upload HTTP/1.1\r\nHost: example.com\r\nTransfer-Encoding: gzip\r\n\r\n"
		_, err := conn.Write([]byte(req))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		status, h := readResponseHead(br)
		Expect(status).To(Equal("HTTP/1.1 501 Not Implemented"))
		Expect(h.Get("Connection")).To(Equal("close"))
	})

	It("[TC-E2E-006] preserves an encoded %2F in PATH_INFO", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(pathEchoApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		req := "GET /a%2Fb/c HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"
		_, err := conn.Write([]byte(req))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		status, h := readResponseHead(br)
		Expect(status).To(Equal("HTTP/1.1 200 OK"))

		n, err := strconv.Atoi(h.Get("Content-Length"))
		Expect(err).ToNot(HaveOccurred())
		buf := make([]byte, n)
		_, err = io.ReadFull(br, buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf)).To(Equal("/a%2Fb/c"))
	})

	It("[TC-E2E-007] sends a 100 Continue interim response before the final one", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(echoApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		req := "POST /upload HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\nExpect: 100-continue\r\nConnection: close\r\n\r\nhello"
		_, err := conn.Write([]byte(req))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		interim, _ := readResponseHead(br)
		Expect(interim).To(Equal("HTTP/1.1 100 Continue"))

		final, _ := readResponseHead(br)
		Expect(final).To(Equal("HTTP/1.1 200 OK"))
	})

	It("[TC-E2E-008] downgrades framing for an HTTP/1.0 request", func() {
		srv, stop := startTestServer([]Mount{{Prefix: "", App: gwapp.ApplicationFunc(helloApp)}})
		defer stop()

		conn := dial(srv)
		defer conn.Close()

		_, err := conn.Write([]byte("GET / HTTP/1.0\r\nHost: example.com\r\n\r\n"))
		Expect(err).ToNot(HaveOccurred())

		br := bufio.NewReader(conn)
		status, h := readResponseHead(br)
		Expect(status).To(Equal("HTTP/1.0 200 OK"))
		Expect(h.Get("Transfer-Encoding")).To(BeEmpty())
		Expect(h.Get("Connection")).To(Equal("close"))

		rest, err := io.ReadAll(br)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(rest)).To(Equal("Hello, World!"))
	})
})
