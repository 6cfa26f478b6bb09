package compressor

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Compressor 抽象了“单次压缩/解压”能力。
//
// 实现需要支持并发调用，同一实例由多个编解码器共享。
type Compressor interface {
	// Compress 将 src 压缩到 dst。
	//
	// dst 一般可以传入一个可复用的缓冲区（长度可为 0），实现可选择复用其底层容量。
	// 压缩后不比原始数据更小时返回 ErrIncompressible，调用方应按未压缩处理。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 将压缩数据 src 解压到 dst。
	//
	// dst 的容量必须不小于原始数据长度，块格式的实现据此确定输出大小。
	Decompress(dst, src []byte) (plain []byte, err error)
}

// ErrIncompressible 表示压缩没有收益。
var ErrIncompressible = errors.New("compressor: data is incompressible")

// Tag 标识帧头中记录的压缩算法，占 1 字节，取值是协议常量。
type Tag uint8

const (
	TagNone Tag = 0
	TagLZ4  Tag = 1
	TagZstd Tag = 2
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagLZ4:
		return "lz4"
	case TagZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseTag 解析压缩算法名称，空字符串视为 none。
func ParseTag(name string) (Tag, error) {
	switch name {
	case "", "none":
		return TagNone, nil
	case "lz4":
		return TagLZ4, nil
	case "zstd":
		return TagZstd, nil
	default:
		return 0, errors.Newf("unknown compression %q", name)
	}
}

// New 按标签创建 Compressor。concurrency 只对 zstd 生效。
func New(tag Tag, concurrency int) (Compressor, error) {
	switch tag {
	case TagNone:
		return NopCompressor{}, nil
	case TagLZ4:
		return LZ4Compressor{}, nil
	case TagZstd:
		return NewZstdCompressorWithConcurrency(concurrency)
	default:
		return nil, errors.Newf("unsupported compression tag %d", uint8(tag))
	}
}

// NopCompressor 是一个空实现：不做任何压缩/解压，直接返回输入内容。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

// 编译期断言：确保 NopCompressor 实现了 Compressor 接口。
var _ Compressor = NopCompressor{}
