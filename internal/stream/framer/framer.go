package framer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/graph-serde-go/internal/stream/compressor"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// Frame 是一帧数据的内容。帧头字段以 protobuf wire 格式编码，未知字段在读入时跳过。
type Frame struct {
	// Version 为写出方的格式版本（semver）。
	Version string
	Flags   uint64
	// Compression 为 Payload 使用的压缩算法。
	Compression compressor.Tag
	// RawSize 为解压后的负载长度。
	RawSize uint64
	// Checksum 为原始负载的校验和，Flags 不含 FlagChecksum 时为空。
	Checksum []byte
	Payload  []byte

	// WireSize 为写出或读入时的整帧长度（含 4 字节长度前缀）。
	WireSize int
}

// 帧标志位。
const (
	FlagChecksum uint64 = 1 << iota
)

const (
	fieldVersion     protowire.Number = 1
	fieldFlags       protowire.Number = 2
	fieldCompression protowire.Number = 3
	fieldRawSize     protowire.Number = 4
	fieldChecksum    protowire.Number = 5
	fieldPayload     protowire.Number = 6
)

// Framer 抽象了帧的打包/解包能力。
//
// 约定：
//   - 一帧数据的格式为：4 字节大端无符号整型（表示后续帧体的长度）+ 帧体。
type Framer interface {
	// WriteFrame 将 Frame 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, f *Frame) error

	// ReadFrame 从 r 中读取一帧数据并解包为 Frame。
	ReadFrame(r io.Reader) (*Frame, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大帧体长度，单位字节。
	// 为 0 时使用默认值 defaultMaxFrameSize。
	MaxFrameSize uint32
}

var _ Framer = (*LengthPrefixedFramer)(nil)

const (
	defaultMaxFrameSize uint32 = 64 * 1024 * 1024 // 64MB
	prefixSize                 = 4
)

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将 Frame 编码为长度前缀帧并一次写入。
func (fr *LengthPrefixedFramer) WriteFrame(w io.Writer, f *Frame) error {
	if f == nil {
		return merr.WrapErrParameterMissing("frame")
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	b := append(buf.B[:0], 0, 0, 0, 0)
	b = appendHeader(b, f)
	if f.Payload != nil {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	buf.B = b

	length := uint64(len(b) - prefixSize)
	if length > uint64(fr.effectiveMaxSize()) {
		return merr.WrapErrFrameTooLarge(length, uint64(fr.effectiveMaxSize()))
	}
	binary.BigEndian.PutUint32(b[:prefixSize], uint32(length))

	if _, err := w.Write(b); err != nil {
		return merr.WrapErrIoFailed("write frame", err)
	}
	f.WireSize = len(b)
	return nil
}

func appendHeader(b []byte, f *Frame) []byte {
	if f.Version != "" {
		b = protowire.AppendTag(b, fieldVersion, protowire.BytesType)
		b = protowire.AppendString(b, f.Version)
	}
	if f.Flags != 0 {
		b = protowire.AppendTag(b, fieldFlags, protowire.VarintType)
		b = protowire.AppendVarint(b, f.Flags)
	}
	if f.Compression != compressor.TagNone {
		b = protowire.AppendTag(b, fieldCompression, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.Compression))
	}
	if f.RawSize != 0 {
		b = protowire.AppendTag(b, fieldRawSize, protowire.VarintType)
		b = protowire.AppendVarint(b, f.RawSize)
	}
	if len(f.Checksum) > 0 {
		b = protowire.AppendTag(b, fieldChecksum, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Checksum)
	}
	return b
}

// ReadFrame 从流中读取一帧数据并解码为 Frame。
func (fr *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var header [prefixSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, merr.WrapErrIoFailed("read frame header", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > fr.effectiveMaxSize() {
		return nil, merr.WrapErrFrameTooLarge(uint64(length), uint64(fr.effectiveMaxSize()))
	}

	// 使用 ByteBuffer 池降低频繁 make 带来的分配与 GC 压力。
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if cap(buf.B) < int(length) {
		buf.B = make([]byte, int(length))
	} else {
		buf.B = buf.B[:int(length)]
	}
	if _, err := io.ReadFull(r, buf.B); err != nil {
		return nil, merr.WrapErrIoFailed("read frame body", err)
	}

	f, err := parseFrame(buf.B)
	if err != nil {
		return nil, err
	}
	f.WireSize = prefixSize + int(length)
	return f, nil
}

// parseFrame 解析帧体。返回的 Frame 不引用 body 的内存。
func parseFrame(body []byte) (*Frame, error) {
	f := &Frame{}
	offset := 0
	for offset < len(body) {
		num, typ, n := protowire.ConsumeTag(body[offset:])
		if n < 0 {
			return nil, corrupted("tag", n, offset)
		}
		offset += n

		switch {
		case num == fieldVersion && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(body[offset:])
			if n < 0 {
				return nil, corrupted("version", n, offset)
			}
			f.Version = v
			offset += n
		case (num == fieldFlags || num == fieldCompression || num == fieldRawSize) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body[offset:])
			if n < 0 {
				return nil, corrupted("varint", n, offset)
			}
			switch num {
			case fieldFlags:
				f.Flags = v
			case fieldCompression:
				if v > 0xff {
					return nil, merr.WrapErrStreamCorrupted(fmt.Sprintf("compression tag %d out of range", v), offset)
				}
				f.Compression = compressor.Tag(v)
			default:
				f.RawSize = v
			}
			offset += n
		case (num == fieldChecksum || num == fieldPayload) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body[offset:])
			if n < 0 {
				return nil, corrupted("bytes", n, offset)
			}
			if num == fieldChecksum {
				f.Checksum = bytes.Clone(v)
			} else {
				f.Payload = bytes.Clone(v)
			}
			offset += n
		default:
			n := protowire.ConsumeFieldValue(num, typ, body[offset:])
			if n < 0 {
				return nil, corrupted("unknown field", n, offset)
			}
			offset += n
		}
	}
	return f, nil
}

func corrupted(what string, code int, offset int) error {
	return merr.WrapErrStreamCorrupted(fmt.Sprintf("frame %s: %v", what, protowire.ParseError(code)), offset)
}

func (fr *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if fr == nil || fr.MaxFrameSize == 0 {
		return defaultMaxFrameSize
	}
	return fr.MaxFrameSize
}
