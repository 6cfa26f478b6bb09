package compressor

import (
	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4/v4"
)

// LZ4Compressor 使用 LZ4 块格式。块格式不记录原始长度，由帧头中的原始大小提供。
type LZ4Compressor struct{}

var _ Compressor = LZ4Compressor{}

func (LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	if cap(dst) < bound {
		dst = make([]byte, bound)
	}
	dst = dst[:bound]

	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	// CompressBlock 对不可压缩的数据返回 0。
	if n == 0 || n >= len(src) {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

func (LZ4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	size := cap(dst)
	if size == 0 {
		return nil, errors.New("lz4 decompress: destination capacity is zero")
	}
	dst = dst[:size]
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	return dst[:n], nil
}
