package compressor

import (
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor 基于 github.com/klauspost/compress/zstd 的压缩实现。
//
// 它持有独立的 encoder/decoder 实例，二者均支持并发使用。
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// 编译期断言：确保 ZstdCompressor 实现了 Compressor 接口。
var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建一个 ZstdCompressor，默认并发度为 GOMAXPROCS。
func NewZstdCompressor() (*ZstdCompressor, error) {
	return NewZstdCompressorWithConcurrency(0)
}

// NewZstdCompressorWithConcurrency 创建一个 ZstdCompressor，并允许显式指定 zstd 的并发数。
//
// 参数说明：
//   - concurrency <= 0：使用 runtime.GOMAXPROCS(0)。
//   - concurrency > 0 ：使用指定并发度。
func NewZstdCompressorWithConcurrency(concurrency int) (*ZstdCompressor, error) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	opts := []zstd.EOption{
		zstd.WithZeroFrames(true),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(concurrency),
	}

	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(concurrency))
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCompressor{
		enc: enc,
		dec: dec,
	}, nil
}

// Compress 实现 Compressor 接口。
func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	out := c.enc.EncodeAll(src, dst[:0])
	if len(out) >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

// Decompress 实现 Compressor 接口。
func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	return c.dec.DecodeAll(src, dst[:0])
}

// Close 释放内部 encoder/decoder 持有的资源。
//
// 再次使用已关闭实例将返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}
