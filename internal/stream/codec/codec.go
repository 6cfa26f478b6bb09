package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/blang/semver/v4"
	"github.com/cockroachdb/errors"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/lk2023060901/graph-serde-go/internal/stream"
	"github.com/lk2023060901/graph-serde-go/internal/stream/compressor"
	"github.com/lk2023060901/graph-serde-go/internal/stream/framer"
	"github.com/lk2023060901/graph-serde-go/internal/stream/serializer"
	"github.com/lk2023060901/graph-serde-go/pkg/log"
	"github.com/lk2023060901/graph-serde-go/pkg/metrics"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// FormatVersion 为写出帧时使用的格式版本，读入时要求主版本号一致。
const FormatVersion = "1.0.0"

var formatVersion = semver.MustParse(FormatVersion)

// Codec 抽象了“从对象到帧，以及从帧回到对象”的完整编解码流程。
//
// Pipeline（写出 Encode）：
//
//	v --> serializer --> [checksum?] --> [compress?] --> Frame --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Frame --> [version] --> [decompress?] --> [checksum?] --> serializer --> v
//
// 实现支持并发调用。任一阶段失败时返回 *stream.StageError，并计入 stream 错误指标。
type Codec interface {
	// Encode 将 v 编码为一帧并写入 w。
	Encode(w io.Writer, v any) error

	// Decode 从 r 读取一帧，解码为 any。流已结束时返回 io.EOF。
	Decode(r io.Reader) (any, error)

	// DecodeInto 从 r 读取一帧并解码到 dst，dst 必须为非 nil 指针。
	DecodeInto(r io.Reader, dst any) error

	// DecodeRaw 从 r 读取一帧，返回已完成解压与校验的负载字节。
	DecodeRaw(r io.Reader) ([]byte, error)

	// Close 释放压缩器持有的资源。
	Close()
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Serializer serializer.Serializer
	// Framer 允许为 nil（内部按 Config.MaxFrameSize 创建 LengthPrefixedFramer）。
	Framer framer.Framer
	// Compressor 允许为 nil；非 nil 时替换 Config.Compression 对应的实现。
	Compressor compressor.Compressor
	// Config 允许为 nil（使用 stream.DefaultConfig）。
	Config *stream.Config
	Logger *log.MLogger
}

type codec struct {
	framer      framer.Framer
	serializer  serializer.Serializer
	tag         compressor.Tag
	compressors map[compressor.Tag]compressor.Compressor
	cfg         stream.Config
	logger      *log.MLogger
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Serializer == nil {
		return nil, merr.WrapErrParameterMissing("serializer")
	}

	cfg := stream.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tag, _ := cfg.Tag()

	c := &codec{
		framer:      opts.Framer,
		serializer:  opts.Serializer,
		tag:         tag,
		compressors: make(map[compressor.Tag]compressor.Compressor, 3),
		cfg:         cfg,
		logger:      opts.Logger,
	}
	if c.framer == nil {
		c.framer = framer.NewLengthPrefixedFramer(uint32(cfg.MaxFrameSize))
	}
	if c.logger == nil {
		c.logger = log.With(log.FieldModule("stream"))
	}

	// 读入方向按帧头选择算法，因此每种算法都需要可用。
	for _, t := range []compressor.Tag{compressor.TagNone, compressor.TagLZ4, compressor.TagZstd} {
		if t == tag && opts.Compressor != nil {
			c.compressors[t] = opts.Compressor
			continue
		}
		comp, err := compressor.New(t, cfg.ZstdConcurrency)
		if err != nil {
			c.Close()
			return nil, merr.WrapErrCompressionFailed(t.String(), err)
		}
		c.compressors[t] = comp
	}
	return c, nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, v any) error {
	if w == nil {
		return c.fail(stream.StageWriteFrame, merr.WrapErrParameterMissing("writer"))
	}

	// 第一步：对象序列化。
	body, err := c.serializer.Marshal(v)
	if err != nil {
		return c.fail(stream.StageSerialize, err)
	}
	if len(body) > c.cfg.MaxFrameSize {
		return c.fail(stream.StageSerialize, merr.WrapErrFrameTooLarge(uint64(len(body)), uint64(c.cfg.MaxFrameSize)))
	}

	f := &framer.Frame{
		Version: FormatVersion,
		RawSize: uint64(len(body)),
		Payload: body,
	}

	// 第二步：可选校验和，基于压缩前的负载计算。
	if c.cfg.Checksum {
		sum := blake3.Sum256(body)
		f.Checksum = sum[:]
		f.Flags |= framer.FlagChecksum
	}

	// 第三步：可选压缩，没有收益时按未压缩写出。
	if c.tag != compressor.TagNone && len(body) >= c.cfg.MinCompressSize {
		packed, err := c.compressors[c.tag].Compress(nil, body)
		switch {
		case err == nil:
			f.Payload = packed
			f.Compression = c.tag
		case errors.Is(err, compressor.ErrIncompressible):
		default:
			return c.fail(stream.StageCompress, merr.WrapErrCompressionFailed(c.tag.String(), err))
		}
	}

	if err := c.framer.WriteFrame(w, f); err != nil {
		return c.fail(stream.StageWriteFrame, err)
	}
	metrics.StreamBytes.WithLabelValues(metrics.DirectionEncode).Add(float64(f.WireSize))
	metrics.StreamFrameSize.WithLabelValues(metrics.DirectionEncode).Observe(float64(f.WireSize))
	return nil
}

// DecodeRaw 实现 Codec.DecodeRaw。
func (c *codec) DecodeRaw(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, c.fail(stream.StageReadFrame, merr.WrapErrParameterMissing("reader"))
	}

	f, err := c.framer.ReadFrame(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, c.fail(stream.StageReadFrame, err)
	}
	metrics.StreamBytes.WithLabelValues(metrics.DirectionDecode).Add(float64(f.WireSize))
	metrics.StreamFrameSize.WithLabelValues(metrics.DirectionDecode).Observe(float64(f.WireSize))

	if err := checkVersion(f.Version); err != nil {
		return nil, c.fail(stream.StageVerify, err)
	}
	if f.RawSize > uint64(c.cfg.MaxFrameSize) {
		return nil, c.fail(stream.StageDecompress, merr.WrapErrFrameTooLarge(f.RawSize, uint64(c.cfg.MaxFrameSize)))
	}

	data := f.Payload
	if f.Compression != compressor.TagNone {
		comp, ok := c.compressors[f.Compression]
		if !ok {
			return nil, c.fail(stream.StageDecompress,
				merr.WrapErrStreamCorrupted(fmt.Sprintf("unknown compression %s", f.Compression), 0))
		}
		plain, err := comp.Decompress(make([]byte, 0, f.RawSize), f.Payload)
		if err != nil {
			return nil, c.fail(stream.StageDecompress, merr.WrapErrCompressionFailed(f.Compression.String(), err))
		}
		data = plain
	}

	if uint64(len(data)) != f.RawSize {
		return nil, c.fail(stream.StageVerify,
			merr.WrapErrStreamCorrupted(fmt.Sprintf("payload size %d, header says %d", len(data), f.RawSize), 0))
	}
	if f.Flags&framer.FlagChecksum != 0 {
		sum := blake3.Sum256(data)
		if !bytes.Equal(sum[:], f.Checksum) {
			return nil, c.fail(stream.StageVerify, merr.WrapErrChecksumMismatch("blake3"))
		}
	}
	return data, nil
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader) (any, error) {
	var v any
	if err := c.DecodeInto(r, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInto 实现 Codec.DecodeInto。
func (c *codec) DecodeInto(r io.Reader, dst any) error {
	data, err := c.DecodeRaw(r)
	if err != nil {
		return err
	}
	if err := c.serializer.Unmarshal(data, dst); err != nil {
		return c.fail(stream.StageDeserialize, err)
	}
	return nil
}

// Close 实现 Codec.Close。
func (c *codec) Close() {
	for _, comp := range c.compressors {
		if z, ok := comp.(*compressor.ZstdCompressor); ok {
			z.Close()
		}
	}
}

func (c *codec) fail(stage stream.Stage, err error) error {
	metrics.StreamErrors.WithLabelValues(string(stage)).Inc()
	c.logger.Warn("stream codec failed", zap.String("stage", string(stage)), zap.Error(err))
	return stream.WrapStage(stage, err)
}

func checkVersion(version string) error {
	v, err := semver.Parse(version)
	if err != nil {
		return merr.WrapErrVersionMismatch(FormatVersion, version)
	}
	if v.Major != formatVersion.Major {
		return merr.WrapErrVersionMismatch(FormatVersion, version)
	}
	return nil
}
