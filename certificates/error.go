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

package certificates

import "github.com/sabouaram/wsgicore/gwerrors"

func init() {
	gwerrors.RegisterIdFctMessage(gwerrors.MinPkgGatewayTLS, getMessage)
}

func getMessage(code gwerrors.CodeError) string {
	switch code {
	case gwerrors.MinPkgGatewayTLS:
		return "certificate or key path is empty"
	case gwerrors.MinPkgGatewayTLS + 1:
		return "cannot stat certificate/key file"
	case gwerrors.MinPkgGatewayTLS + 2:
		return "cannot read certificate/key file"
	case gwerrors.MinPkgGatewayTLS + 3:
		return "certificate/key file is empty"
	case gwerrors.MinPkgGatewayTLS + 4:
		return "cannot load certificate/key pair"
	}

	return ""
}
