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
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrProtocolViolation("next")
	err = errors.Wrap(err, "failed to read node")
	s.ErrorIs(err, ErrProtocolViolation)
	s.Equal(Code(ErrProtocolViolation), Code(err))
	s.Equal(int32(0), Code(nil))
	s.Equal(errUnexpected.errCode, Code(io.EOF))

	sameCodeErr := newSerdeError("new error", ErrProtocolViolation.errCode, false)
	s.True(sameCodeErr.Is(ErrProtocolViolation))
}

func (s *ErrSuite) TestErrorType() {
	s.True(IsProtocolError(WrapErrProtocolViolation("value")))
	s.True(IsProtocolError(WrapErrTypeUnresolvable(42)))
	s.True(IsProtocolError(WrapErrStreamCorrupted("truncated varint", 3)))
	s.False(IsProtocolError(WrapErrTraversalInvariant("frame mismatch", 2)))
	s.False(IsProtocolError(nil))

	s.True(IsInvariantError(WrapErrTraversalInvariant("frame mismatch", 2)))
	s.False(IsInvariantError(WrapErrProtocolViolation("value")))
	s.Equal(SystemError, GetErrorType(io.EOF))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestFieldAccessKeepsCause() {
	cause := errors.New("reflect: unexported field")
	err := WrapErrFieldAccess("Node", "next", cause)
	s.ErrorIs(err, ErrFieldAccess)
	s.ErrorIs(err, cause)
	s.Equal(Code(ErrFieldAccess), Code(err))
	s.Contains(err.Error(), "field=next")

	s.ErrorIs(WrapErrFieldAccess("Node", "next", nil), ErrFieldAccess)
}

func (s *ErrSuite) TestWrap() {
	s.ErrorIs(WrapErrProtocolViolation("next", "null marker"), ErrProtocolViolation)
	s.ErrorIs(WrapErrTypeUnresolvable(7, "unknown id"), ErrTypeUnresolvable)
	s.ErrorIs(WrapErrStreamCorrupted("truncated", 10), ErrStreamCorrupted)
	s.ErrorIs(WrapErrVersionMismatch("1.0.0", "2.0.0"), ErrVersionMismatch)
	s.ErrorIs(WrapErrChecksumMismatch("payload"), ErrChecksumMismatch)
	s.ErrorIs(WrapErrFrameTooLarge(10, 5), ErrFrameTooLarge)
	s.ErrorIs(WrapErrTypeUnregistered("main.Node"), ErrTypeUnregistered)
	s.ErrorIs(WrapErrTypeUnsupported("chan int"), ErrTypeUnsupported)
	s.ErrorIs(WrapErrTypeConflict("main.Node", 10), ErrTypeConflict)
	s.ErrorIs(WrapErrCompressionFailed("zstd", io.ErrUnexpectedEOF), ErrCompressionFailed)
	s.ErrorIs(WrapErrCompressionFailed("zstd", io.ErrUnexpectedEOF), io.ErrUnexpectedEOF)
	s.ErrorIs(WrapErrIoFailed("write", io.ErrShortWrite), ErrIoFailed)
	s.ErrorIs(WrapErrParameterInvalid(1, 2, "worklist size"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("bad %s", "value"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("serializer"), ErrParameterMissing)
}

func (s *ErrSuite) TestRetriable() {
	s.True(IsRetryableErr(WrapErrIoFailed("write", nil)))
	s.False(IsRetryableErr(WrapErrProtocolViolation("next")))
	s.False(IsRetryableErr(io.EOF))
}

func (s *ErrSuite) TestCombineErr() {
	errFirst := errors.New("first")
	errSecond := errors.New("second")
	errThird := errors.New("third")

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	err = Combine(errFirst, nil, errThird)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errThird))
	s.Equal("first: third", err.Error())

	s.Nil(Combine(nil, nil))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
