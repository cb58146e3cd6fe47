// Copyright 2024 SRxLab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides a thin structured logging layer on top of zap. Log
// context is passed as alternating key/value pairs, mirroring the error
// context convention of the serrors package.
package log

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/srxlab/bgpsecval/pkg/private/serrors"
)

// Level is the verbosity level of a log statement.
type Level = zapcore.Level

// Available log levels.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Logger describes the logging API.
type Logger interface {
	// New returns a Logger that has the given context attached to every log
	// statement.
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	// Enabled returns whether the given level is enabled.
	Enabled(lvl Level) bool
}

type logger struct {
	logger *zap.Logger
}

// New creates a Logger with the given context attached to the process-wide
// zap logger.
func New(ctx ...any) Logger {
	return &logger{logger: zap.L().With(convertCtx(ctx)...)}
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(lvl)
}

// Root returns the root logger. It never returns nil.
func Root() Logger {
	return &logger{logger: zap.L()}
}

// Discard returns a logger that drops everything. Useful as a default for
// components that treat logging as optional.
func Discard() Logger {
	return &logger{logger: zap.NewNop()}
}

// Setup builds the process-wide logger at the given level using a production
// console encoder and installs it as the zap global.
func Setup(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return serrors.Wrap("parsing log level", err, "level", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return serrors.Wrap("building logger", err)
	}
	zap.ReplaceGlobals(l)
	return nil
}

// HandlePanic logs and re-raises a panic in the calling goroutine. Deferred
// at the start of every goroutine this package's users spawn, so panics
// reach the log before they take the process down.
func HandlePanic() {
	if msg := recover(); msg != nil {
		Root().Error("Goroutine panicked", "panic", msg, "stack", string(debug.Stack()))
		panic(msg)
	}
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(ctx[i]), ctx[i+1]))
	}
	return fields
}
