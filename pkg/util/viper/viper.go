package viper

import (
	"bytes"
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// EnvPrefix 为环境变量覆盖配置时使用的前缀，例如 GRAPHSERDE_SERDE_REFERENCES。
const EnvPrefix = "GRAPHSERDE"

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config，并开启带前缀的环境变量覆盖。
func New() *Config {
	v := spfviper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Config{v: v}
}

// SetDefault 设置 key 的缺省值，未出现在文件与环境变量中的 key 会回落到该值。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return c.v.ReadInConfig()
}

// LoadBytes 从内存中加载配置，typ 为 "yaml" 或 "json"。
func (c *Config) LoadBytes(typ string, data []byte) error {
	c.v.SetConfigType(typ)
	return c.v.ReadConfig(bytes.NewReader(data))
}

// Unmarshal 将完整配置反序列化到 dst，dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
//
// 注意：环境变量覆盖只对 Unmarshal 生效，且 key 需要先通过 SetDefault 声明。
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.v.UnmarshalKey(key, dst)
}

// IsSet 判断 key 是否存在于任一配置来源。
func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}
