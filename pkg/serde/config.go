package serde

import (
	"go.uber.org/zap"

	"github.com/lk2023060901/graph-serde-go/pkg/log"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
	"github.com/lk2023060901/graph-serde-go/pkg/util/viper"
)

// Config 控制 Session 的编码行为，可从 YAML/JSON 的 "serde" 段加载。
type Config struct {
	// References 开启后指针按身份跟踪，共享与循环引用以回引用标记编码。
	References bool `mapstructure:"references" json:"references" yaml:"references"`
	// RegistrationRequired 开启后，未注册的结构体类型在编码和解码时都会失败。
	RegistrationRequired bool `mapstructure:"registrationRequired" json:"registrationRequired" yaml:"registrationRequired"`
	// InitialWorklistSize 为工作栈的初始容量。
	InitialWorklistSize int `mapstructure:"initialWorklistSize" json:"initialWorklistSize" yaml:"initialWorklistSize"`
	// TailSubstitution 控制编码时最后一个复合字段是否复用当前帧。
	TailSubstitution bool `mapstructure:"tailSubstitution" json:"tailSubstitution" yaml:"tailSubstitution"`
	// DepthWatermark 为工作栈深度告警阈值，0 表示不告警。
	DepthWatermark int `mapstructure:"depthWatermark" json:"depthWatermark" yaml:"depthWatermark"`
}

const (
	defaultInitialWorklistSize = 64
	defaultDepthWatermark      = 100000

	configKey = "serde"
)

func DefaultConfig() Config {
	return Config{
		References:           true,
		RegistrationRequired: false,
		InitialWorklistSize:  defaultInitialWorklistSize,
		TailSubstitution:     true,
		DepthWatermark:       defaultDepthWatermark,
	}
}

func (c *Config) Validate() error {
	if c.InitialWorklistSize < 0 {
		return merr.WrapErrParameterInvalidMsg("initialWorklistSize must be >= 0, got %d", c.InitialWorklistSize)
	}
	if c.DepthWatermark < 0 {
		return merr.WrapErrParameterInvalidMsg("depthWatermark must be >= 0, got %d", c.DepthWatermark)
	}
	return nil
}

// SetDefaults 在 v 上声明 "serde" 段的全部 key，使环境变量覆盖生效。
func SetDefaults(v *viper.Config) {
	def := DefaultConfig()
	v.SetDefault(configKey+".references", def.References)
	v.SetDefault(configKey+".registrationRequired", def.RegistrationRequired)
	v.SetDefault(configKey+".initialWorklistSize", def.InitialWorklistSize)
	v.SetDefault(configKey+".tailSubstitution", def.TailSubstitution)
	v.SetDefault(configKey+".depthWatermark", def.DepthWatermark)
}

// LoadConfig 从 v 中读取 "serde" 段，缺省 key 取 DefaultConfig 的值。
func LoadConfig(v *viper.Config) (Config, error) {
	SetDefaults(v)
	var root struct {
		Serde Config `mapstructure:"serde"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return Config{}, merr.WrapErrParameterInvalidMsg("failed to decode serde config: %v", err)
	}
	if err := root.Serde.Validate(); err != nil {
		return Config{}, err
	}
	return root.Serde, nil
}

type sessionOption struct {
	cfg    Config
	logger *log.MLogger
}

func defaultSessionOption() *sessionOption {
	return &sessionOption{
		cfg: DefaultConfig(),
	}
}

// Option 用于配置 Session 的选项函数。
type Option func(opt *sessionOption)

// WithConfig 整体替换配置，之后的选项仍可覆盖单项。
func WithConfig(cfg Config) Option {
	return func(opt *sessionOption) {
		opt.cfg = cfg
	}
}

func WithReferences(v bool) Option {
	return func(opt *sessionOption) {
		opt.cfg.References = v
	}
}

func WithRegistrationRequired(v bool) Option {
	return func(opt *sessionOption) {
		opt.cfg.RegistrationRequired = v
	}
}

func WithInitialWorklistSize(n int) Option {
	return func(opt *sessionOption) {
		opt.cfg.InitialWorklistSize = n
	}
}

func WithTailSubstitution(v bool) Option {
	return func(opt *sessionOption) {
		opt.cfg.TailSubstitution = v
	}
}

func WithDepthWatermark(n int) Option {
	return func(opt *sessionOption) {
		opt.cfg.DepthWatermark = n
	}
}

// WithLogger 指定 Session 使用的 Logger，缺省为全局 Logger。
func WithLogger(logger *log.MLogger) Option {
	return func(opt *sessionOption) {
		opt.logger = logger
	}
}

func (opt *sessionOption) resolveLogger() *log.MLogger {
	if opt.logger != nil {
		return opt.logger
	}
	return log.With(zap.String(log.FieldNameModule, "serde")).
		WithRateGroup("serde.traversal", 1, 10)
}
