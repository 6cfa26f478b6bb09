package stream

import (
	"math"

	"github.com/lk2023060901/graph-serde-go/internal/stream/compressor"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
	"github.com/lk2023060901/graph-serde-go/pkg/util/viper"
)

// Config 控制帧编解码，可从 YAML/JSON 的 "stream" 段加载。
type Config struct {
	// Compression 为写出时使用的压缩算法：none、lz4 或 zstd。读入时按帧头自动选择。
	Compression string `mapstructure:"compression" json:"compression" yaml:"compression"`
	// Checksum 开启后帧头携带原始负载的 blake3 校验和。
	Checksum bool `mapstructure:"checksum" json:"checksum" yaml:"checksum"`
	// MaxFrameSize 同时限制帧长度和解压后的负载长度，单位字节。
	MaxFrameSize int `mapstructure:"maxFrameSize" json:"maxFrameSize" yaml:"maxFrameSize"`
	// MinCompressSize 小于该长度的负载不压缩。
	MinCompressSize int `mapstructure:"minCompressSize" json:"minCompressSize" yaml:"minCompressSize"`
	// ZstdConcurrency 为 zstd 编码并发度，<= 0 时取 GOMAXPROCS。
	ZstdConcurrency int `mapstructure:"zstdConcurrency" json:"zstdConcurrency" yaml:"zstdConcurrency"`
}

const (
	defaultMaxFrameSize    = 64 << 20
	defaultMinCompressSize = 512

	configKey = "stream"
)

func DefaultConfig() Config {
	return Config{
		Compression:     compressor.TagNone.String(),
		Checksum:        true,
		MaxFrameSize:    defaultMaxFrameSize,
		MinCompressSize: defaultMinCompressSize,
	}
}

// Tag 返回 Compression 对应的压缩标签。
func (c *Config) Tag() (compressor.Tag, error) {
	return compressor.ParseTag(c.Compression)
}

func (c *Config) Validate() error {
	if _, err := c.Tag(); err != nil {
		return merr.WrapErrParameterInvalidMsg("invalid compression: %v", err)
	}
	if c.MaxFrameSize <= 0 || c.MaxFrameSize > math.MaxUint32 {
		return merr.WrapErrParameterInvalidMsg("maxFrameSize must be in (0, %d], got %d", uint64(math.MaxUint32), c.MaxFrameSize)
	}
	if c.MinCompressSize < 0 {
		return merr.WrapErrParameterInvalidMsg("minCompressSize must be >= 0, got %d", c.MinCompressSize)
	}
	return nil
}

// SetDefaults 在 v 上声明 "stream" 段的全部 key，使环境变量覆盖生效。
func SetDefaults(v *viper.Config) {
	def := DefaultConfig()
	v.SetDefault(configKey+".compression", def.Compression)
	v.SetDefault(configKey+".checksum", def.Checksum)
	v.SetDefault(configKey+".maxFrameSize", def.MaxFrameSize)
	v.SetDefault(configKey+".minCompressSize", def.MinCompressSize)
	v.SetDefault(configKey+".zstdConcurrency", def.ZstdConcurrency)
}

// LoadConfig 从 v 中读取 "stream" 段，缺省 key 取 DefaultConfig 的值。
func LoadConfig(v *viper.Config) (Config, error) {
	SetDefaults(v)
	var root struct {
		Stream Config `mapstructure:"stream"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return Config{}, merr.WrapErrParameterInvalidMsg("failed to decode stream config: %v", err)
	}
	if err := root.Stream.Validate(); err != nil {
		return Config{}, err
	}
	return root.Stream, nil
}
