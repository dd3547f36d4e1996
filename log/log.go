// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log re-exports the luxfi/log.Logger interface so the rest of
// this module takes a logger by constructor injection instead of
// reaching for a package-level global.
package log

import "github.com/luxfi/log"

// Logger is the interface every Votor component logs through.
type Logger = log.Logger

// NewNoOpLogger returns a logger that discards everything, for tests and
// for callers that haven't wired a real sink yet.
func NewNoOpLogger() Logger {
	return log.NewNoOpLogger()
}
