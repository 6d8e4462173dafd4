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
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("[TC-CH] chunked transfer decoding", func() {
	It("[TC-CH-001] reassembles a plain chunked body", func() {
		r := bufio.NewReader(strings.NewReader("4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"))

		body, trailer, err := decodeChunked(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("Wikipedia"))
		Expect(trailer).To(BeEmpty())
	})

	It("[TC-CH-002] strips chunk extensions and captures trailers", func() {
		r := bufio.NewReader(strings.NewReader("4;ext=1\r\nWiki\r\n0\r\nX-Checksum: abc123\r\n\r\n"))

		body, trailer, err := decodeChunked(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("Wiki"))
		Expect(trailer.Get("X-Checksum")).To(Equal("abc123"))
	})

	It("[TC-CH-003] rejects a malformed chunk terminator", func() {
		r := bufio.NewReader(strings.NewReader("4\r\nWikiXX0\r\n\r\n"))

		_, _, err := decodeChunked(r)
		Expect(err).To(HaveOccurred())
	})

	It("[TC-CH-004] rejects a non-hex chunk size", func() {
		r := bufio.NewReader(strings.NewReader("zz\r\n\r\n"))

		_, _, err := decodeChunked(r)
		Expect(err).To(HaveOccurred())
	})

	It("[TC-CH-005] accepts an immediately-terminated empty body", func() {
		r := bufio.NewReader(strings.NewReader("0\r\n\r\n"))

		body, trailer, err := decodeChunked(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(body).To(BeEmpty())
		Expect(trailer).To(BeEmpty())
	})
})

var _ = Describe("[TC-CS] splitCommaTokens", func() {
	It("[TC-CS-001] trims whitespace around each token", func() {
		got := splitCommaTokens(" gzip ,  chunked ,other")
		Expect(got).To(Equal([]string{"gzip", "chunked", "other"}))
	})

	It("[TC-CS-002] returns nil for an empty string", func() {
		Expect(splitCommaTokens("")).To(BeNil())
	})
})
