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
	"sort"
	"strings"

	"github.com/sabouaram/wsgicore/gwapp"
)

// mountTable is the sorted, immutable-after-construction set of mount
// points a server dispatches to. Sort order is prefix length descending so
// the first match found by Match is always the longest one (§4.G).
type mountTable struct {
	mounts []Mount
}

func newMountTable(m []Mount) *mountTable {
	cp := make([]Mount, len(m))
	copy(cp, m)

	sort.SliceStable(cp, func(i, j int) bool {
		return len(cp[i].Prefix) > len(cp[j].Prefix)
	})

	return &mountTable{mounts: cp}
}

// match resolves path to a (prefix, application) pair. path == "*" routes to
// the shortest registered mount (last after descending sort), matching the
// reference server's "the last wsgi_app (shortest path) will always handle
// a URI of '*'" rule. Otherwise the longest prefix p such that path == p or
// path begins with p+"/" wins; the empty prefix matches every absolute
// path and so acts as the universal catch-all.
func (t *mountTable) match(path string) (prefix string, app gwapp.Application, ok bool) {
	if len(t.mounts) == 0 {
		return "", nil, false
	}

	if path == "*" {
		last := t.mounts[len(t.mounts)-1]
		return last.Prefix, last.App, true
	}

	for _, m := range t.mounts {
		if path == m.Prefix || strings.HasPrefix(path, m.Prefix+"/") {
			return m.Prefix, m.App, true
		}
	}

	return "", nil, false
}
