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

// Package serrors provides errors that carry structured log context as
// key/value pairs. Errors created by this package implement
// zapcore.ObjectMarshaler so that the context ends up as structured fields
// rather than being flattened into the message. Wrapped causes are reachable
// through errors.Is and errors.As.
package serrors

import (
	"bytes"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ctxPair is one key/value item of error context.
type ctxPair struct {
	Key   string
	Value any
}

// basicError is the error implementation of this package. The ctx slice is
// held behind a pointer to keep the type comparable for errors.Is.
type basicError struct {
	msg   string
	ctx   *[]ctxPair
	cause error
}

func (e *basicError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.msg)
	if len(*e.ctx) != 0 {
		buf.WriteString(" {")
		for i, p := range *e.ctx {
			if i != 0 {
				buf.WriteString("; ")
			}
			fmt.Fprintf(&buf, "%s=%v", p.Key, p.Value)
		}
		buf.WriteString("}")
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e *basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler for a structured log
// representation.
func (e *basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	if e.cause != nil {
		if m, ok := e.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", e.cause.Error())
		}
	}
	for _, pair := range *e.ctx {
		zap.Any(pair.Key, pair.Value).AddTo(enc)
	}
	return nil
}

func mkCtx(errCtx ...any) *[]ctxPair {
	np := len(errCtx) / 2
	ctx := make([]ctxPair, np)
	for i := 0; i < np; i++ {
		ctx[i] = ctxPair{Key: fmt.Sprint(errCtx[2*i]), Value: errCtx[2*i+1]}
	}
	sort.Slice(ctx, func(a, b int) bool {
		return ctx[a].Key < ctx[b].Key
	})
	return &ctx
}

// New creates a new error with the given message and context.
func New(msg string, errCtx ...any) error {
	return &basicError{
		msg: msg,
		ctx: mkCtx(errCtx...),
	}
}

// Wrap returns an error with the given message and context that wraps cause.
// errors.Is on the result returns true for cause.
func Wrap(msg string, cause error, errCtx ...any) error {
	return &basicError{
		msg:   msg,
		ctx:   mkCtx(errCtx...),
		cause: cause,
	}
}

// Join associates the given base error, typically a sentinel created with
// errors.New, with an optional cause and context. errors.Is on the result
// returns true for both err and cause. Join returns nil if both err and cause
// are nil.
func Join(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	return &joinedError{
		error: err,
		ctx:   mkCtx(errCtx...),
		cause: cause,
	}
}

// joinedError attaches context and a cause to an existing base error without
// replacing its identity.
type joinedError struct {
	error error
	ctx   *[]ctxPair
	cause error
}

func (e *joinedError) Error() string {
	b := basicError{msg: e.error.Error(), ctx: e.ctx, cause: e.cause}
	return b.Error()
}

func (e *joinedError) Unwrap() []error {
	return []error{e.error, e.cause}
}

// MarshalLogObject implements zapcore.ObjectMarshaler. The base error is
// treated as a plain message.
func (e *joinedError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	b := basicError{msg: e.error.Error(), ctx: e.ctx, cause: e.cause}
	return b.MarshalLogObject(enc)
}
