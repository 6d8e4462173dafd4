//go:build windows

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
	"syscall"

	"golang.org/x/sys/windows"
)

// Windows equivalents of the POSIX errno set, matching the reference's
// WSAECONNABORTED/WSAECONNREFUSED/WSAECONNRESET/WSAENETRESET/WSAETIMEDOUT.
var socketErrorsToIgnore = map[syscall.Errno]bool{
	syscall.Errno(windows.WSAECONNABORTED): true,
	syscall.Errno(windows.WSAECONNREFUSED): true,
	syscall.Errno(windows.WSAECONNRESET):   true,
	syscall.Errno(windows.WSAENETRESET):    true,
	syscall.Errno(windows.WSAETIMEDOUT):    true,
}

func isClientGoneErrno(errno syscall.Errno) bool {
	return socketErrorsToIgnore[errno]
}
