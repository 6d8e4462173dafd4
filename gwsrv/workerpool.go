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

import "sync"

// worker is one long-lived pool member. It drains the queue until it sees
// the SHUTDOWN sentinel (§4.C).
type worker struct {
	srv *server
	wg  *sync.WaitGroup
}

func (w *worker) run(readyWG *sync.WaitGroup) {
	defer w.wg.Done()

	readyWG.Done()

	for {
		item := w.srv.queue.get()
		if item.shutdown {
			return
		}

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					w.srv.cfg.Logger.Errorf("worker: panic serving connection: %v", rec)
				}
			}()
			item.conn.serve()
		}()
	}
}

// startWorkers spawns cfg.NumThreads workers and blocks until every one has
// reported ready, matching Server.start's synchronous contract (§4.C).
func (s *server) startWorkers() {
	var pool sync.WaitGroup
	var ready sync.WaitGroup

	pool.Add(s.cfg.NumThreads)
	ready.Add(s.cfg.NumThreads)

	for i := 0; i < s.cfg.NumThreads; i++ {
		w := &worker{srv: s, wg: &pool}
		go w.run(&ready)
	}

	ready.Wait()
	s.workersWG = &pool
}
