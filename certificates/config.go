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

// Package certificates loads a server certificate/private-key pair into a
// *tls.Config, with support for swapping the active pair at runtime (used
// by gwsrv's certificate-reload watcher).
package certificates

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"

	"github.com/sabouaram/wsgicore/gwerrors"
)

// Config names the PEM files for one certificate/key pair.
type Config struct {
	CertFile string `mapstructure:"cert_file" json:"cert_file" yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `mapstructure:"key_file" json:"key_file" yaml:"key_file" toml:"key_file"`
}

// TLSConfig is the loaded, swappable certificate material for one server.
type TLSConfig interface {
	// Load reads CertFile/KeyFile and, on success, makes them the active pair.
	Load(cfg Config) error

	// LenCertificatePair reports how many certificates are currently loaded
	// (0 or 1 for this trimmed implementation).
	LenCertificatePair() int

	// TlsConfig returns a *tls.Config that always serves the current pair,
	// even after a later Load() call swaps it.
	TlsConfig(serverName string) *tls.Config

	// Leaf returns the parsed leaf certificate of the currently active
	// pair, or nil when none is loaded. Used to populate the SSL_SERVER_*
	// environment entries from the server's own certificate rather than
	// from a per-connection handshake state.
	Leaf() *x509.Certificate
}

type tlsCfg struct {
	mu   sync.RWMutex
	cert *tls.Certificate
	leaf *x509.Certificate
}

// New returns an empty TLSConfig; call Load to populate it.
func New() TLSConfig {
	return &tlsCfg{}
}

func checkFile(path string) error {
	if path == "" {
		return gwerrors.New(gwerrors.MinPkgGatewayTLS)
	}

	if _, e := os.Stat(path); e != nil {
		return gwerrors.ErrorParent(gwerrors.MinPkgGatewayTLS+1, e)
	}

	b, e := os.ReadFile(path)
	if e != nil {
		return gwerrors.ErrorParent(gwerrors.MinPkgGatewayTLS+2, e)
	}

	if len(bytes.TrimSpace(b)) < 1 {
		return gwerrors.New(gwerrors.MinPkgGatewayTLS + 3)
	}

	return nil
}

func (c *tlsCfg) Load(cfg Config) error {
	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return nil
	}

	if e := checkFile(cfg.CertFile); e != nil {
		return e
	}
	if e := checkFile(cfg.KeyFile); e != nil {
		return e
	}

	pair, e := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if e != nil {
		return gwerrors.ErrorParent(gwerrors.MinPkgGatewayTLS+4, e)
	}

	var leaf *x509.Certificate
	if len(pair.Certificate) > 0 {
		if parsed, pe := x509.ParseCertificate(pair.Certificate[0]); pe == nil {
			leaf = parsed
		}
	}

	c.mu.Lock()
	c.cert = &pair
	c.leaf = leaf
	c.mu.Unlock()

	return nil
}

func (c *tlsCfg) Leaf() *x509.Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.leaf
}

func (c *tlsCfg) LenCertificatePair() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cert == nil {
		return 0
	}
	return 1
}

func (c *tlsCfg) TlsConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(_ *tls.ClientHelloInfo) (*tls.Certificate, error) {
			c.mu.RLock()
			defer c.mu.RUnlock()

			if c.cert == nil {
				return nil, gwerrors.New(gwerrors.MinPkgGatewayTLS)
			}
			return c.cert, nil
		},
	}
}
