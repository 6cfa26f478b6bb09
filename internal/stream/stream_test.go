package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/graph-serde-go/internal/stream/compressor"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
	"github.com/lk2023060901/graph-serde-go/pkg/util/viper"
)

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	require.NoError(t, v.LoadBytes("yaml", []byte(`
stream:
  compression: zstd
  maxFrameSize: 1048576
`)))

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	tag, err := cfg.Tag()
	require.NoError(t, err)
	assert.Equal(t, compressor.TagZstd, tag)
	assert.Equal(t, 1048576, cfg.MaxFrameSize)
	assert.True(t, cfg.Checksum)
	assert.Equal(t, defaultMinCompressSize, cfg.MinCompressSize)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("GRAPHSERDE_STREAM_COMPRESSION", "lz4")
	t.Setenv("GRAPHSERDE_STREAM_CHECKSUM", "false")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.False(t, cfg.Checksum)
}

func TestConfigValidate(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Compression = "gzip" },
		func(c *Config) { c.MaxFrameSize = 0 },
		func(c *Config) { c.MinCompressSize = -1 },
	}
	for _, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), merr.ErrParameterInvalid)
	}
	def := DefaultConfig()
	assert.NoError(t, def.Validate())
}

func TestStageError(t *testing.T) {
	assert.NoError(t, WrapStage(StageVerify, nil))

	err := WrapStage(StageCompress, merr.WrapErrCompressionFailed("zstd", errors.New("boom")))
	assert.ErrorIs(t, err, ErrEncodeFailed)
	assert.NotErrorIs(t, err, ErrDecodeFailed)
	assert.ErrorIs(t, err, merr.ErrCompressionFailed)
	assert.Equal(t, merr.Code(merr.ErrCompressionFailed), merr.Code(err))

	stage, ok := StageOf(err)
	assert.True(t, ok)
	assert.Equal(t, StageCompress, stage)

	err = WrapStage(StageDeserialize, merr.ErrStreamCorrupted)
	assert.ErrorIs(t, err, ErrDecodeFailed)
	assert.Contains(t, err.Error(), "stream deserialize")

	_, ok = StageOf(errors.New("plain"))
	assert.False(t, ok)
}
