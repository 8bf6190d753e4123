// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides a minimal structured logger with levels, used as the
// default logging façade for the library. Callers can plug any
// implementation of the Logger interface.
package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// DefaultMessageKey is the key under which formatted messages are logged.
const DefaultMessageKey = "msg"

// Logger is a logger interface.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

type stdLogger struct {
	w   io.Writer
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewStdLogger creates a logger that writes "key=value" pairs to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

// Log prints the keyvals to the underlying writer, one line per call.
func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if (len(keyvals) & 1) == 1 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Reset()
	l.buf.WriteString(level.String())
	for i := 0; i < len(keyvals); i += 2 {
		_, _ = fmt.Fprintf(&l.buf, " %s=%v", keyvals[i], keyvals[i+1])
	}
	l.buf.WriteByte('\n')
	_, err := l.w.Write(l.buf.Bytes())
	return err
}
