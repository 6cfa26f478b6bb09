package application

import (
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lk2023060901/graph-serde-go/internal/stream"
	"github.com/lk2023060901/graph-serde-go/internal/stream/codec"
	"github.com/lk2023060901/graph-serde-go/internal/stream/serializer"
	zlog "github.com/lk2023060901/graph-serde-go/pkg/log"
	"github.com/lk2023060901/graph-serde-go/pkg/serde"
	zviper "github.com/lk2023060901/graph-serde-go/pkg/util/viper"
)

const (
	defaultConfigPath = "./config.yaml"
	// ConfigPathEnv 为指定配置文件路径的环境变量。
	ConfigPathEnv = zviper.EnvPrefix + "_CONFIG_FILE_PATH"
)

// Application 持有配置、日志以及由配置构建的 serde Session 与帧编解码器。
type Application struct {
	cfg        *zviper.Config
	configPath string
	flagPath   string
	loggers    map[string]*zlog.MLogger

	serdeCfg  serde.Config
	streamCfg stream.Config
	session   *serde.Session

	codecOnce sync.Once
	codec     codec.Codec
	codecErr  error
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// BindFlags 在 fs 上注册 --config，需在 fs.Parse 之前调用。
func (a *Application) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.flagPath, "config", "", "path of the YAML/JSON config file")
}

// Run 加载配置并初始化日志与 Session。
//
// 配置文件路径的优先级（后者覆盖前者）：
//  1. 默认：./config.yaml，文件不存在时只使用缺省值
//  2. 环境变量：GRAPHSERDE_CONFIG_FILE_PATH
//  3. 命令行：--config <path>
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	if a.serdeCfg, err = serde.LoadConfig(cfg); err != nil {
		return err
	}
	if a.streamCfg, err = stream.LoadConfig(cfg); err != nil {
		return err
	}
	a.session = serde.NewSession(
		serde.WithConfig(a.serdeCfg),
		serde.WithLogger(a.Logger("serde")),
	)

	a.Logger("application").Info("application started",
		zap.String("config", a.configPath),
		zap.Bool("references", a.serdeCfg.References),
		zap.String("compression", a.streamCfg.Compression),
	)
	return nil
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// ConfigPath 返回实际加载的配置文件路径，未加载文件时为空。
func (a *Application) ConfigPath() string {
	return a.configPath
}

func (a *Application) SerdeConfig() serde.Config {
	return a.serdeCfg
}

func (a *Application) StreamConfig() stream.Config {
	return a.streamCfg
}

// Session 返回由配置构建的模板 Session。
func (a *Application) Session() *serde.Session {
	return a.session
}

// Register 在模板 Session 上注册类型，必须在第一次调用 Codec 之前完成。
func (a *Application) Register(values ...any) error {
	if a.session == nil {
		return errors.New("application is not running")
	}
	for _, v := range values {
		if _, err := a.session.Register(v); err != nil {
			return err
		}
	}
	return nil
}

// Codec 返回基于模板 Session 的帧编解码器，首次调用时创建。
func (a *Application) Codec() (codec.Codec, error) {
	if a.session == nil {
		return nil, errors.New("application is not running")
	}
	a.codecOnce.Do(func() {
		cfg := a.streamCfg
		a.codec, a.codecErr = codec.New(codec.Options{
			Serializer: serializer.NewGraphSerializer(a.session),
			Config:     &cfg,
			Logger:     a.Logger("stream"),
		})
	})
	return a.codec, a.codecErr
}

// Close 释放编解码器并刷新日志。
func (a *Application) Close() {
	if a.codec != nil {
		a.codec.Close()
	}
	_ = zlog.Sync()
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := defaultConfigPath
	explicit := false

	if envPath := strings.TrimSpace(os.Getenv(ConfigPathEnv)); envPath != "" {
		configPath = envPath
		explicit = true
	}
	if a.flagPath != "" {
		configPath = a.flagPath
		explicit = true
	}

	cfg := zviper.New()
	if _, err := os.Stat(configPath); err != nil && !explicit && os.IsNotExist(err) {
		return cfg, nil
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", configPath)
	}
	a.configPath = configPath
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLogger(); err != nil {
		return err
	}
	return a.initModuleLoggers()
}

// initGlobalLogger 按 "log" 段配置进程级 Logger，未配置时保留默认的标准输出 Logger。
//
// 环境变量 GRAPHSERDE_LOG_LEVEL 等可覆盖文件中的值。
func (a *Application) initGlobalLogger() error {
	a.cfg.SetDefault("log.level", "info")
	a.cfg.SetDefault("log.format", "console")
	a.cfg.SetDefault("log.stdout", true)

	var root struct {
		Log zlog.Config `mapstructure:"log"`
	}
	if err := a.cfg.Unmarshal(&root); err != nil {
		return errors.Wrap(err, "decode log config")
	}

	logger, props, err := zlog.InitLogger(&root.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggers creates named loggers from config under "logging" key.
//
// Example:
//
//	logging:
//	  serde:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: serde.log
func (a *Application) initModuleLoggers() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}
