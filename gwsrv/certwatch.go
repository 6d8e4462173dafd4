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
	"github.com/fsnotify/fsnotify"

	"github.com/sabouaram/wsgicore/certificates"
	"github.com/sabouaram/wsgicore/gwlog"
)

// certWatcher reloads the active certificate/key pair whenever either file
// changes on disk, letting an operator rotate a certificate without
// restarting the listener. The original CherryPy server has no equivalent —
// it never needed one, since OpenSSL contexts were rebuilt per-process — so
// this is grounded on nabbar-golib's fsnotify-based config watchers rather
// than on wsgiserver.py.
type certWatcher struct {
	watcher *fsnotify.Watcher
	cfg     certificates.Config
	tls     certificates.TLSConfig
	log     gwlog.Logger
	done    chan struct{}
}

func newCertWatcher(cfg certificates.Config, tlsCfg certificates.TLSConfig, log gwlog.Logger) (*certWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.CertFile != "" {
		_ = w.Add(cfg.CertFile)
	}
	if cfg.KeyFile != "" && cfg.KeyFile != cfg.CertFile {
		_ = w.Add(cfg.KeyFile)
	}

	cw := &certWatcher{watcher: w, cfg: cfg, tls: tlsCfg, log: log, done: make(chan struct{})}
	go cw.run()
	return cw, nil
}

func (cw *certWatcher) run() {
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := cw.tls.Load(cw.cfg); err != nil {
				cw.log.Warnf("certificate reload failed: %v", err)
				continue
			}
			cw.log.Infof("certificate reloaded from %s", ev.Name)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Warnf("certificate watch error: %v", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *certWatcher) Close() error {
	close(cw.done)
	return cw.watcher.Close()
}
