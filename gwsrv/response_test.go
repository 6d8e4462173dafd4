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
	"bytes"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/wsgicore/gwlog"
)

// buildTestRequest wires a Request to an in-memory Connection/server pair,
// enough to exercise response framing without a real socket.
func buildTestRequest(reqMajor, reqMinor int) (*Request, *bytes.Buffer) {
	cfg := &Config{ServerToken: "test/1.0", Protocol: "HTTP/1.1", Logger: gwlog.New(nil)}
	srv := &server{cfg: cfg, mounts: newMountTable(nil)}

	var out bytes.Buffer
	conn := &Connection{srv: srv, w: bufio.NewWriter(&out), scheme: "http"}

	r := newRequest(conn)
	r.reqMajor, r.reqMinor = reqMajor, reqMinor
	r.resMinor = reqMinor
	r.responseProto = "HTTP/1.1"
	r.status = "200 OK"
	r.respHeader = http.Header{}

	return r, &out
}

var _ = Describe("[TC-RS] response framing", func() {
	Describe("sendHeaders", func() {
		It("[TC-RS-001] selects chunked framing for 200 with no Content-Length", func() {
			r, out := buildTestRequest(1, 1)
			r.sendHeaders()
			Expect(r.conn.w.Flush()).To(Succeed())

			Expect(out.String()).To(HavePrefix("HTTP/1.1 200 OK\r\n"))
			Expect(out.String()).To(ContainSubstring("Transfer-Encoding: chunked\r\n"))
			Expect(r.chunkedWrite).To(BeTrue())
		})

		It("[TC-RS-002] selects no framing at all for 204 No Content", func() {
			r, out := buildTestRequest(1, 1)
			r.status = "204 No Content"
			r.sendHeaders()
			Expect(r.conn.w.Flush()).To(Succeed())

			Expect(r.chunkedWrite).To(BeFalse())
			Expect(r.forceClose).To(BeFalse())
			Expect(out.String()).ToNot(ContainSubstring("Transfer-Encoding"))
		})

		It("[TC-RS-003] forces the connection closed for 413", func() {
			r, _ := buildTestRequest(1, 1)
			r.status = "413 Request Entity Too Large"
			r.sendHeaders()

			Expect(r.forceClose).To(BeTrue())
			Expect(r.closeConnection).To(BeTrue())
			Expect(r.respHeader.Get("Connection")).To(Equal("close"))
		})

		It("[TC-RS-004] never chunks an HTTP/1.0 response", func() {
			r, _ := buildTestRequest(1, 0)
			r.sendHeaders()

			Expect(r.chunkedWrite).To(BeFalse())
			Expect(r.forceClose).To(BeTrue())
		})

		It("[TC-RS-005] leaves an explicit Content-Length untouched", func() {
			r, out := buildTestRequest(1, 1)
			r.respHeader.Set("Content-Length", "5")
			r.sendHeaders()
			Expect(r.conn.w.Flush()).To(Succeed())

			Expect(r.chunkedWrite).To(BeFalse())
			Expect(out.String()).ToNot(ContainSubstring("Transfer-Encoding"))
		})
	})

	Describe("write", func() {
		It("[TC-RS-006] emits chunk framing and a terminator", func() {
			r, out := buildTestRequest(1, 1)

			_, err := r.write([]byte("hello"))
			Expect(err).ToNot(HaveOccurred())
			Expect(r.finishChunked()).To(Succeed())
			Expect(r.conn.w.Flush()).To(Succeed())

			Expect(out.String()).To(ContainSubstring("5\r\nhello\r\n"))
			Expect(out.String()).To(HaveSuffix("0\r\n\r\n"))
		})

		It("[TC-RS-007] sends headers on the first call", func() {
			r, _ := buildTestRequest(1, 1)
			Expect(r.sentHeaders).To(BeFalse())

			_, err := r.write([]byte("x"))
			Expect(err).ToNot(HaveOccurred())
			Expect(r.sentHeaders).To(BeTrue())
		})
	})

	Describe("finishChunked", func() {
		It("[TC-RS-008] is a no-op when chunked framing was not selected", func() {
			r, out := buildTestRequest(1, 1)
			r.respHeader.Set("Content-Length", "0")
			r.sendHeaders()
			Expect(r.conn.w.Flush()).To(Succeed())
			head := out.String()

			Expect(r.finishChunked()).To(Succeed())
			Expect(r.conn.w.Flush()).To(Succeed())

			Expect(out.String()).To(Equal(head))
		})
	})

	Describe("cloneHeader", func() {
		It("[TC-RS-009] preserves the echoed Connection value unless overridden", func() {
			keep := http.Header{"Connection": {"Keep-Alive"}}
			app := http.Header{"Content-Type": {"text/plain"}}

			out := cloneHeader(app, keep)
			Expect(out.Get("Connection")).To(Equal("Keep-Alive"))
			Expect(out.Get("Content-Type")).To(Equal("text/plain"))

			override := cloneHeader(http.Header{"Connection": {"close"}}, keep)
			Expect(override.Get("Connection")).To(Equal("close"))
		})
	})

	Describe("parseStatusCode", func() {
		DescribeTable("extracts the leading 3-digit code",
			func(in string, want int) {
				Expect(parseStatusCode(in)).To(Equal(want))
			},
			Entry("a normal status line", "200 OK", 200),
			Entry("a 4xx status line", "404 Not Found", 404),
			Entry("an empty string", "", 0),
			Entry("a string shorter than 3 characters", "x", 0),
		)
	})

	Describe("simpleResponse", func() {
		It("[TC-RS-010] closes the connection for a 413 and uses the canonical reason phrase", func() {
			r, out := buildTestRequest(1, 1)
			Expect(r.simpleResponse(413, "too big")).To(Succeed())

			Expect(r.closeConnection).To(BeTrue())
			Expect(out.String()).To(HavePrefix("HTTP/1.1 413 Request Entity Too Large\r\n"))
			Expect(out.String()).To(HaveSuffix("too big"))
		})
	})

	Describe("tryEmergency500", func() {
		It("[TC-RS-011] does nothing once headers were already sent", func() {
			r, out := buildTestRequest(1, 1)
			r.sentHeaders = true

			r.tryEmergency500()

			Expect(out.Len()).To(Equal(0))
		})
	})
})
