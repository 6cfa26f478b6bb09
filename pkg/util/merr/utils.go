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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码，nil 返回 0。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	if specificErr, ok := cause.(serdeError); ok {
		return specificErr.code()
	}
	return errUnexpected.code()
}

func IsRetryableErr(err error) bool {
	if err, ok := errors.Cause(err).(serdeError); ok {
		return err.retriable
	}
	return false
}

func GetErrorType(err error) ErrorType {
	if merr, ok := errors.Cause(err).(serdeError); ok {
		return merr.errType
	}
	return SystemError
}

// IsProtocolError 判断错误是否源于“坏数据”。
func IsProtocolError(err error) bool {
	return err != nil && GetErrorType(err) == InputError
}

// IsInvariantError 判断错误是否源于遍历簿记缺陷。
func IsInvariantError(err error) bool {
	return errors.Is(err, ErrTraversalInvariant)
}

// Protocol 相关错误封装。
func WrapErrProtocolViolation(field any, msg ...string) error {
	err := wrapFields(ErrProtocolViolation, value("field", field))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeUnresolvable(id int32, msg ...string) error {
	err := wrapFields(ErrTypeUnresolvable, value("typeID", id))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrStreamCorrupted(reason string, offset int) error {
	return wrapFieldsWithDesc(ErrStreamCorrupted, reason, value("offset", offset))
}

func WrapErrVersionMismatch(expected, actual string) error {
	return wrapFields(ErrVersionMismatch,
		value("expected", expected),
		value("actual", actual),
	)
}

func WrapErrChecksumMismatch(msg ...string) error {
	err := error(ErrChecksumMismatch)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrFrameTooLarge(size, limit uint64) error {
	return wrapFields(ErrFrameTooLarge, bound("size", size, 0, limit))
}

// Traversal 相关错误封装。
func WrapErrTraversalInvariant(reason string, depth int) error {
	return wrapFieldsWithDesc(ErrTraversalInvariant, reason, value("depth", depth))
}

// WrapErrFieldAccess 保留原始 cause，errors.Is 对两者都成立。
func WrapErrFieldAccess(owner any, field string, cause error) error {
	err := wrapFields(ErrFieldAccess, value("type", owner), value("field", field))
	if cause == nil {
		return err
	}
	return Combine(cause, err)
}

// Type 相关错误封装。
func WrapErrTypeUnregistered(typ any, msg ...string) error {
	err := wrapFields(ErrTypeUnregistered, value("type", typ))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeUnsupported(typ any, msg ...string) error {
	err := wrapFields(ErrTypeUnsupported, value("type", typ))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeConflict(typ any, id int32, msg ...string) error {
	err := wrapFields(ErrTypeConflict, value("type", typ), value("id", id))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Codec 相关错误封装。
func WrapErrCompressionFailed(algo string, cause error) error {
	err := wrapFields(ErrCompressionFailed, value("algo", algo))
	if cause == nil {
		return err
	}
	return Combine(cause, err)
}

func WrapErrIoFailed(op string, cause error) error {
	err := wrapFields(ErrIoFailed, value("op", op))
	if cause == nil {
		return err
	}
	return Combine(cause, err)
}

// Parameter 相关错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err serdeError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err serdeError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
