package log

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitTestLogger(t *testing.T) {
	lg, props, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	require.NotNil(t, props)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
	lg.Debug("traversal step", FieldType(reflect.TypeOf(0)), FieldDepth(3))
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, zapcore.AddSync(os.Stderr))
	assert.Error(t, err)
}

func TestInitLoggerFile(t *testing.T) {
	dir := t.TempDir()
	lg, _, err := InitLogger(&Config{Level: "info", File: FileLogConfig{RootPath: dir, Filename: "serde.log"}})
	require.NoError(t, err)
	lg.Info("hello")
	require.NoError(t, lg.Sync())

	_, err = os.Stat(filepath.Join(dir, "serde.log"))
	assert.NoError(t, err)

	_, _, err = InitLogger(&Config{File: FileLogConfig{RootPath: dir, Filename: ""}})
	assert.NoError(t, err)
}

func TestInitLoggerDirectoryAsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	_, _, err := InitLogger(&Config{File: FileLogConfig{RootPath: dir, Filename: "sub"}})
	assert.Error(t, err)
}

func TestCtxLogger(t *testing.T) {
	assert.NotNil(t, Ctx(context.TODO()))
	assert.NotNil(t, Ctx(nil)) //nolint:staticcheck

	ctx := WithModule(context.Background(), "serde")
	l := Ctx(ctx)
	assert.NotSame(t, L(), l.Logger)

	ctx2 := WithFields(ctx, zap.String("k", "v"))
	assert.NotSame(t, l, Ctx(ctx2))
}

func TestSetLevel(t *testing.T) {
	old := GetLevel()
	defer SetLevel(old)

	SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, GetLevel())
}

func TestRatedLogger(t *testing.T) {
	l := With(FieldModule("test")).WithRateGroup("test.rated", 1, 1)
	assert.True(t, l.RatedDebug(1, "first"))
	assert.False(t, l.RatedDebug(1, "second"))

	// 子 Logger 继承限流分组。
	child := l.With(FieldComponent("child"))
	assert.False(t, child.RatedInfo(1, "third"))

	assert.True(t, RatedDebug(0, "global nop limiter"))
}
