// Package dlog provides the structured logging used across the dataops core.
// Every subsystem logs through one shared logrus.Logger so operators get a
// single stream with consistent fields (component, storage_name, operation)
// regardless of which adapter or engine emitted the line.
package dlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// base is the process-wide logger. Tests may swap its output with SetOutput.
var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetOutput redirects all log output, primarily for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetJSON switches the formatter to JSON, the mode used in production.
func SetJSON(enabled bool) {
	if enabled {
		base.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel parses and applies a logrus level name, defaulting to info on
// an unrecognized value.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// For returns a logger scoped to a component, the unit every package in this
// module logs through (e.g. dlog.For("crud"), dlog.For("graphdao")).
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// ForStorage returns a logger further scoped to a named storage binding,
// used by adapters and the Unified CRUD engine when recording per-backend
// operations.
func ForStorage(component, storageName string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"component":    component,
		"storage_name": storageName,
	})
}
