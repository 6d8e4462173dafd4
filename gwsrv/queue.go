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

// unboundedQueueSize stands in for "no limit" (MaxQueue <= 0). A literally
// unbounded Go channel isn't possible, so a large buffer is used instead —
// see DESIGN.md's Open Question note on component B.
const unboundedQueueSize = 1 << 20

// queueItem is either a live connection or the SHUTDOWN sentinel, one per
// worker, that dissolves the pool (§4.B, §4.C).
type queueItem struct {
	conn     *Connection
	shutdown bool
}

// connQueue is the bounded blocking FIFO handing accepted connections from
// the acceptor to the worker pool.
type connQueue struct {
	ch chan queueItem
}

func newConnQueue(max int) *connQueue {
	if max <= 0 {
		max = unboundedQueueSize
	}
	return &connQueue{ch: make(chan queueItem, max)}
}

// put enqueues a connection, blocking if the queue is full (natural
// backpressure on the acceptor).
func (q *connQueue) put(c *Connection) {
	q.ch <- queueItem{conn: c}
}

// putShutdown enqueues one SHUTDOWN sentinel.
func (q *connQueue) putShutdown() {
	q.ch <- queueItem{shutdown: true}
}

// get blocks until an item is available.
func (q *connQueue) get() queueItem {
	return <-q.ch
}
