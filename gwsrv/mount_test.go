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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/wsgicore/gwapp"
)

func namedApp(name string) gwapp.Application {
	return gwapp.ApplicationFunc(func(_ gwapp.Environ, _ gwapp.StartResponseFunc) (gwapp.Body, error) {
		return gwapp.NewSliceBody([]byte(name)), nil
	})
}

var _ = Describe("[TC-MT] mountTable", func() {
	Describe("longest-prefix matching", func() {
		var mt *mountTable

		BeforeEach(func() {
			mt = newMountTable([]Mount{
				{Prefix: "", App: namedApp("root")},
				{Prefix: "/api", App: namedApp("api")},
				{Prefix: "/api/v2", App: namedApp("apiv2")},
			})
		})

		It("[TC-MT-001] picks the deepest matching prefix", func() {
			prefix, _, ok := mt.match("/api/v2/users")
			Expect(ok).To(BeTrue())
			Expect(prefix).To(Equal("/api/v2"))
		})

		It("[TC-MT-002] falls back to a shallower prefix", func() {
			prefix, _, ok := mt.match("/api/users")
			Expect(ok).To(BeTrue())
			Expect(prefix).To(Equal("/api"))
		})

		It("[TC-MT-003] treats the empty prefix as the catch-all", func() {
			prefix, _, ok := mt.match("/other")
			Expect(ok).To(BeTrue())
			Expect(prefix).To(Equal(""))
		})

		It("[TC-MT-004] matches a path exactly equal to a mount prefix", func() {
			prefix, _, ok := mt.match("/api")
			Expect(ok).To(BeTrue())
			Expect(prefix).To(Equal("/api"))
		})

		It("[TC-MT-005] does not match a sibling path sharing only a string prefix", func() {
			mt2 := newMountTable([]Mount{{Prefix: "/api", App: namedApp("api")}})
			_, _, ok := mt2.match("/apikey")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("the empty prefix as universal catch-all", func() {
		It("[TC-MT-006] matches every absolute path", func() {
			mt := newMountTable([]Mount{{Prefix: "", App: namedApp("root")}})
			for _, path := range []string{"/", "/anything", "/deeply/nested/path"} {
				_, _, ok := mt.match(path)
				Expect(ok).To(BeTrue(), "path %q should match the catch-all mount", path)
			}
		})
	})

	Describe("the '*' request-target", func() {
		It("[TC-MT-007] routes to the shortest-prefix mount", func() {
			mt := newMountTable([]Mount{
				{Prefix: "/api/v2", App: namedApp("apiv2")},
				{Prefix: "", App: namedApp("root")},
			})

			_, app, ok := mt.match("*")
			Expect(ok).To(BeTrue())

			body, err := app.Serve(nil, nil)
			Expect(err).ToNot(HaveOccurred())
			chunk, _ := body.Next()
			Expect(string(chunk)).To(Equal("root"))
		})
	})

	Describe("an empty table", func() {
		It("[TC-MT-008] never matches", func() {
			mt := newMountTable(nil)
			_, _, ok := mt.match("/anything")
			Expect(ok).To(BeFalse())
		})
	})
})
