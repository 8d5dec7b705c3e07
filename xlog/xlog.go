// Copyright 2024 The faasmesh Authors
// This file is part of faasmesh.
//
// faasmesh is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// faasmesh is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with faasmesh. If not, see <http://www.gnu.org/licenses/>.

// Package xlog is a thin structured-logging facade over logrus, built
// to the calling convention the teacher's own internal log package
// uses throughout (Info/Warn/Error/Debug with trailing key-value
// pairs) rather than logrus's native WithField chaining.
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Logger is a named component logger, mirroring the teacher's
// log.New("component", name) pattern.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger tagged with the given component name.
func New(component string, ctx ...interface{}) Logger {
	return Logger{entry: base.WithFields(fieldsOf(append([]interface{}{"component", component}, ctx...)))}
}

func fieldsOf(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
	return f
}

func (l Logger) with(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return l.entry
	}
	return l.entry.WithFields(fieldsOf(kv))
}

func (l Logger) Trace(msg string, kv ...interface{}) { l.with(kv).Trace(msg) }
func (l Logger) Debug(msg string, kv ...interface{}) { l.with(kv).Debug(msg) }
func (l Logger) Info(msg string, kv ...interface{})  { l.with(kv).Info(msg) }
func (l Logger) Warn(msg string, kv ...interface{})  { l.with(kv).Warn(msg) }
func (l Logger) Error(msg string, kv ...interface{}) { l.with(kv).Error(msg) }

// SetLevel adjusts the verbosity of the shared base logger.
func SetLevel(level logrus.Level) { base.SetLevel(level) }
