//go:build unix

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

	"golang.org/x/sys/unix"
)

// socketErrorsToIgnore mirrors the reference's socket_errors_to_ignore list,
// built from typed errno constants instead of looking names up by string.
var socketErrorsToIgnore = map[syscall.Errno]bool{
	syscall.Errno(unix.EPIPE):        true,
	syscall.Errno(unix.ETIMEDOUT):    true,
	syscall.Errno(unix.ECONNREFUSED): true,
	syscall.Errno(unix.ECONNRESET):   true,
	syscall.Errno(unix.EHOSTDOWN):    true,
	syscall.Errno(unix.EHOSTUNREACH): true,
}

func isClientGoneErrno(errno syscall.Errno) bool {
	return socketErrorsToIgnore[errno]
}
