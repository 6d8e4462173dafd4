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
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sabouaram/wsgicore/certificates"
	"github.com/sabouaram/wsgicore/gwapp"
	"github.com/sabouaram/wsgicore/gwerrors"
	"github.com/sabouaram/wsgicore/gwlog"
)

// Mount binds one gateway application to a URL prefix. Prefix "" is the
// catch-all mount.
type Mount struct {
	Prefix string            `mapstructure:"prefix" json:"prefix" yaml:"prefix" toml:"prefix"`
	App    gwapp.Application `mapstructure:"-" json:"-" yaml:"-" toml:"-" validate:"required"`
}

// Config holds every construction parameter from SPEC_FULL.md §6.
type Config struct {
	// Listen is the bind address: "host:port", ":port" for wildcard, or a
	// filesystem path for a UNIX domain socket.
	Listen string `mapstructure:"listen" json:"listen" yaml:"listen" toml:"listen" validate:"required"`

	// ServerName feeds SERVER_NAME unless the request-target is in absolute
	// form, whose host part is used instead; the Host header is not
	// consulted. Defaults to os.Hostname() when empty.
	ServerName string `mapstructure:"server_name" json:"server_name" yaml:"server_name" toml:"server_name"`

	// Mounts is the set of (prefix, application) pairs this server serves.
	// At least one is required.
	Mounts []Mount `mapstructure:"-" json:"-" yaml:"-" toml:"-" validate:"required,min=1,dive"`

	// NumThreads is the fixed worker pool size (default 10, minimum 1).
	NumThreads int `mapstructure:"num_threads" json:"num_threads" yaml:"num_threads" toml:"num_threads"`

	// MaxQueue bounds the connection queue; <= 0 means "effectively
	// unlimited" (see DESIGN.md).
	MaxQueue int `mapstructure:"max_queue" json:"max_queue" yaml:"max_queue" toml:"max_queue"`

	// RequestQueueSize is parsed and defaulted (default 5) but is not passed
	// to listen(2): the listener is created through net.ListenConfig, which
	// always uses the Go runtime's own backlog.
	RequestQueueSize int `mapstructure:"request_queue_size" json:"request_queue_size" yaml:"request_queue_size" toml:"request_queue_size"`

	// Timeout bounds per-connection I/O (default 10s).
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" toml:"timeout"`

	// Protocol is the server's announced HTTP version (default HTTP/1.1).
	Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" toml:"protocol"`

	// ServerToken is the free-form Server: header / SERVER_SOFTWARE prefix.
	ServerToken string `mapstructure:"server_token" json:"server_token" yaml:"server_token" toml:"server_token"`

	// TLS is optional certificate/key material. Nil disables TLS.
	TLS *certificates.Config `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	// Logger receives structured diagnostics; a stderr logger is used when nil.
	Logger gwlog.Logger `mapstructure:"-" json:"-" yaml:"-" toml:"-"`
}

func (c *Config) applyDefaults() {
	if c.NumThreads < 1 {
		c.NumThreads = 10
	}
	if c.RequestQueueSize <= 0 {
		c.RequestQueueSize = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Protocol == "" {
		c.Protocol = "HTTP/1.1"
	}
	if c.ServerToken == "" {
		c.ServerToken = "wsgicore/1.0.0"
	}
	if c.ServerName == "" {
		if h, e := os.Hostname(); e == nil {
			c.ServerName = h
		}
	}
	if c.Logger == nil {
		c.Logger = gwlog.New(os.Stderr)
	}
}

// Validate checks the configuration with go-playground/validator and
// returns a gwerrors.Error aggregating every failing constraint.
func (c *Config) Validate() gwerrors.Error {
	if c == nil {
		return gwerrors.New(ErrorConfigEmpty)
	}

	val := validator.New()
	err := val.Struct(c)
	if err == nil {
		return nil
	}

	out := gwerrors.New(ErrorConfigValidate)

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			//nolint goerr113
			out.AddParent(fmt.Errorf("config field %q failed constraint %q", fe.Field(), fe.ActualTag()))
		}
	} else {
		out.AddParent(err)
	}

	return out
}
