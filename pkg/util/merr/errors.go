// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Protocol related，数据本身不合法，调用方应丢弃整条流。
	ErrProtocolViolation = newSerdeError("protocol violation", 100, false, WithErrorType(InputError))
	ErrTypeUnresolvable  = newSerdeError("unresolvable type tag", 101, false, WithErrorType(InputError))
	ErrStreamCorrupted   = newSerdeError("stream corrupted", 102, false, WithErrorType(InputError))
	ErrVersionMismatch   = newSerdeError("stream version mismatch", 103, false, WithErrorType(InputError))
	ErrChecksumMismatch  = newSerdeError("stream checksum mismatch", 104, false, WithErrorType(InputError))
	ErrFrameTooLarge     = newSerdeError("frame too large", 105, false, WithErrorType(InputError))

	// Traversal related，表示遍历簿记本身出了缺陷，而不是数据问题。
	ErrTraversalInvariant = newSerdeError("traversal invariant violated", 200, false)
	ErrFieldAccess        = newSerdeError("field access failed", 201, false)

	// Type related
	ErrTypeUnregistered = newSerdeError("type not registered", 300, false)
	ErrTypeUnsupported  = newSerdeError("type not supported", 301, false)
	ErrTypeConflict     = newSerdeError("type registration conflict", 302, false)

	// Codec related
	ErrCompressionFailed = newSerdeError("compression failed", 400, false)
	ErrIoFailed          = newSerdeError("IO failed", 401, true)

	// Parameter related
	ErrParameterInvalid = newSerdeError("invalid parameter", 1100, false)
	ErrParameterMissing = newSerdeError("missing parameter", 1101, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to serdeError
	errUnexpected = newSerdeError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*serdeError)

func WithErrorType(etype ErrorType) errorOption {
	return func(err *serdeError) {
		err.errType = etype
	}
}

type serdeError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newSerdeError(msg string, code int32, retriable bool, options ...errorOption) serdeError {
	err := serdeError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e serdeError) code() int32 {
	return e.errCode
}

func (e serdeError) Error() string {
	return e.msg
}

func (e serdeError) Detail() string {
	return e.detail
}

func (e serdeError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(serdeError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// 以最后一个错误作为 cause，保证 errors.Is 能沿链继续匹配。
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
