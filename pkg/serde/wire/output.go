// Package wire 提供图序列化使用的底层字节编码：varint、zigzag、定长浮点与长度前缀串。
//
// 编码规则与 protobuf wire format 的标量部分保持一致，由
// google.golang.org/protobuf/encoding/protowire 实现。
package wire

import (
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// Output 是只追加的字节输出缓冲。
type Output struct {
	buf []byte
}

// NewOutput 创建一个初始容量为 capacity 的 Output。
func NewOutput(capacity int) *Output {
	if capacity < 0 {
		capacity = 0
	}
	return &Output{buf: make([]byte, 0, capacity)}
}

func (o *Output) WriteUvarint(v uint64) {
	o.buf = protowire.AppendVarint(o.buf, v)
}

// WriteVarint 以 zigzag 编码写出有符号整数。
func (o *Output) WriteVarint(v int64) {
	o.buf = protowire.AppendVarint(o.buf, protowire.EncodeZigZag(v))
}

func (o *Output) WriteBool(v bool) {
	if v {
		o.buf = append(o.buf, 1)
		return
	}
	o.buf = append(o.buf, 0)
}

func (o *Output) WriteUint8(v uint8) {
	o.buf = append(o.buf, v)
}

func (o *Output) WriteFloat32(v float32) {
	o.buf = protowire.AppendFixed32(o.buf, math.Float32bits(v))
}

func (o *Output) WriteFloat64(v float64) {
	o.buf = protowire.AppendFixed64(o.buf, math.Float64bits(v))
}

func (o *Output) WriteString(v string) {
	o.buf = protowire.AppendString(o.buf, v)
}

// WriteBytes 写出长度前缀的字节串。
func (o *Output) WriteBytes(v []byte) {
	o.buf = protowire.AppendBytes(o.buf, v)
}

// Bytes 返回已写出的内容，调用方不应在继续写入后持有该切片。
func (o *Output) Bytes() []byte {
	return o.buf
}

func (o *Output) Len() int {
	return len(o.buf)
}

// Reset 清空内容并保留容量。
func (o *Output) Reset() {
	o.buf = o.buf[:0]
}

// WriteTo 实现 io.WriterTo。
func (o *Output) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(o.buf)
	if err != nil {
		return int64(n), merr.WrapErrIoFailed("write output", err)
	}
	return int64(n), nil
}
