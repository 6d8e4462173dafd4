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

// Command gwserverd is a minimal illustrative host for gwsrv: it mounts one
// demo gwapp.Application at the root prefix and serves it until a shutdown
// signal arrives. CLI/config-loading frameworks are out of this module's
// scope (see DESIGN.md), so flags are parsed with the standard library.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sabouaram/wsgicore/certificates"
	"github.com/sabouaram/wsgicore/gwapp"
	"github.com/sabouaram/wsgicore/gwlog"
	"github.com/sabouaram/wsgicore/gwsrv"
)

var (
	listen      string
	numThreads  int
	serverToken string
	certFile    string
	keyFile     string
	logLevel    string
)

func main() {
	parseFlags()

	log := gwlog.New(os.Stderr)
	log.SetLevel(gwlog.Parse(logLevel))

	cfg := &gwsrv.Config{
		Listen:      listen,
		NumThreads:  numThreads,
		ServerToken: serverToken,
		Logger:      log,
		Mounts: []gwsrv.Mount{
			{Prefix: "", App: gwapp.ApplicationFunc(helloApp)},
		},
	}

	if certFile != "" && keyFile != "" {
		cfg.TLS = &certificates.Config{CertFile: certFile, KeyFile: keyFile}
	}

	srv, err := gwsrv.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gwserverd: configuration error: %s\n", err.Error())
		os.Exit(1)
	}

	go waitForShutdownSignal(srv, log)

	log.Infof("gwserverd listening on %s", listen)
	if serr := srv.Start(); serr != nil {
		log.Errorf("gwserverd: %s", serr.Error())
		os.Exit(1)
	}
}

func parseFlags() {
	flag.StringVar(&listen, "listen", ":8080", "bind address: host:port, :port, or a filesystem path for a UNIX socket")
	flag.IntVar(&numThreads, "threads", 10, "worker pool size")
	flag.StringVar(&serverToken, "server-token", "gwserverd/1.0.0", "announced Server token")
	flag.StringVar(&certFile, "tls-cert", "", "TLS certificate file (enables TLS with -tls-key)")
	flag.StringVar(&keyFile, "tls-key", "", "TLS private key file (enables TLS with -tls-cert)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()
}

func waitForShutdownSignal(srv gwsrv.Server, log gwlog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Infof("received %s, shutting down", sig.String())

	srv.Stop()

	time.Sleep(100 * time.Millisecond)
	log.Infof("gwserverd stopped")
}

// helloApp is a toy gateway application returning a one-chunk body with a
// non-empty header set, just enough to sanity-check a live server by hand.
func helloApp(environ gwapp.Environ, start gwapp.StartResponseFunc) (gwapp.Body, error) {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")

	if _, err := start("200 OK", header, nil); err != nil {
		return nil, err
	}

	path, _ := environ["PATH_INFO"].(string)
	return gwapp.NewSliceBody([]byte("hello from gwserverd, path=" + path + "\n")), nil
}
