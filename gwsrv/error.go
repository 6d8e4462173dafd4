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

import "github.com/sabouaram/wsgicore/gwerrors"

const (
	ErrorConfigEmpty gwerrors.CodeError = iota + gwerrors.MinPkgGatewayCore
	ErrorConfigValidate
	ErrorNoSocket
	ErrorListen
	ErrorAccept
	ErrorBadRequestLine
	ErrorURIFragment
	ErrorUnsupportedTransferEncoding
	ErrorLengthRequired
	ErrorVersionNotSupported
	ErrorBadChunkFraming
	ErrorAlreadyStarted
)

const (
	ErrorNoMount gwerrors.CodeError = iota + gwerrors.MinPkgGatewayMount
)

func init() {
	gwerrors.RegisterIdFctMessage(gwerrors.MinPkgGatewayCore, getMessage)
	gwerrors.RegisterIdFctMessage(gwerrors.MinPkgGatewayMount, getMountMessage)
}

func getMessage(code gwerrors.CodeError) string {
	switch code {
	case ErrorConfigEmpty:
		return "server config is empty"
	case ErrorConfigValidate:
		return "server config is not valid"
	case ErrorNoSocket:
		return "no socket could be created"
	case ErrorListen:
		return "cannot listen on bind address"
	case ErrorAccept:
		return "accept failed"
	case ErrorBadRequestLine:
		return "malformed request line"
	case ErrorURIFragment:
		return "illegal fragment in request-uri"
	case ErrorUnsupportedTransferEncoding:
		return "unimplemented transfer-encoding"
	case ErrorLengthRequired:
		return "content-length required"
	case ErrorVersionNotSupported:
		return "http version not supported"
	case ErrorBadChunkFraming:
		return "bad chunked transfer coding"
	case ErrorAlreadyStarted:
		return "server already started"
	}

	return ""
}

func getMountMessage(code gwerrors.CodeError) string {
	switch code {
	case ErrorNoMount:
		return "no application mounted for this path"
	}

	return ""
}
