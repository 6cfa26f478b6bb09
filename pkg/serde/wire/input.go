package wire

import (
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// Input 是对字节切片的只读游标，与 Output 的写出顺序一一对应。
type Input struct {
	buf []byte
	off int
}

func NewInput(data []byte) *Input {
	return &Input{buf: data}
}

// NewInputFrom 读取 r 的全部内容并构造 Input。
func NewInputFrom(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, merr.WrapErrIoFailed("read input", err)
	}
	return NewInput(data), nil
}

func (in *Input) corrupted(n int) error {
	return merr.WrapErrStreamCorrupted(protowire.ParseError(n).Error(), in.off)
}

func (in *Input) ReadUvarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(in.buf[in.off:])
	if n < 0 {
		return 0, in.corrupted(n)
	}
	in.off += n
	return v, nil
}

func (in *Input) ReadVarint() (int64, error) {
	v, err := in.ReadUvarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (in *Input) ReadBool() (bool, error) {
	b, err := in.ReadUint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, merr.WrapErrStreamCorrupted("invalid bool byte", in.off-1)
	}
}

func (in *Input) ReadUint8() (uint8, error) {
	if in.off >= len(in.buf) {
		return 0, merr.WrapErrStreamCorrupted("unexpected end of input", in.off)
	}
	b := in.buf[in.off]
	in.off++
	return b, nil
}

func (in *Input) ReadFloat32() (float32, error) {
	v, n := protowire.ConsumeFixed32(in.buf[in.off:])
	if n < 0 {
		return 0, in.corrupted(n)
	}
	in.off += n
	return math.Float32frombits(v), nil
}

func (in *Input) ReadFloat64() (float64, error) {
	v, n := protowire.ConsumeFixed64(in.buf[in.off:])
	if n < 0 {
		return 0, in.corrupted(n)
	}
	in.off += n
	return math.Float64frombits(v), nil
}

func (in *Input) ReadString() (string, error) {
	v, n := protowire.ConsumeString(in.buf[in.off:])
	if n < 0 {
		return "", in.corrupted(n)
	}
	in.off += n
	return v, nil
}

// ReadBytes 读取长度前缀的字节串，返回值为拷贝，不引用输入缓冲。
func (in *Input) ReadBytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(in.buf[in.off:])
	if n < 0 {
		return nil, in.corrupted(n)
	}
	in.off += n
	return append([]byte{}, v...), nil
}

// Offset 返回当前读取位置。
func (in *Input) Offset() int {
	return in.off
}

// Remaining 返回尚未读取的字节数。
func (in *Input) Remaining() int {
	return len(in.buf) - in.off
}
