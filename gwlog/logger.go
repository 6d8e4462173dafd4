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

package gwlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields carries structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the logging surface the gateway core calls through. It never
// calls logrus directly so that a caller embedding this module can swap the
// backend without touching gwsrv.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	WithFields(f Fields) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type logger struct {
	entry *logrus.Entry
	lvl   Level
}

// New returns a Logger writing to w (os.Stderr when w is nil) at InfoLevel.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}

	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(InfoLevel.Logrus())

	return &logger{entry: logrus.NewEntry(base), lvl: InfoLevel}
}

func (l *logger) SetLevel(lvl Level) {
	l.lvl = lvl
	l.entry.Logger.SetLevel(lvl.Logrus())
}

func (l *logger) GetLevel() Level {
	return l.lvl
}

func (l *logger) WithFields(f Fields) Logger {
	return &logger{entry: l.entry.WithFields(logrus.Fields(f)), lvl: l.lvl}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
