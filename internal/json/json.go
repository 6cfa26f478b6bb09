// Package json 基于 bytedance/sonic 提供与 encoding/json 兼容的编解码入口。
package json

import (
	"io"

	"github.com/bytedance/sonic"
)

// api 使用与标准库行为一致的配置：转义 HTML、排序 map key、校验字符串。
var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

func NewEncoder(w io.Writer) sonic.Encoder {
	return api.NewEncoder(w)
}

func NewDecoder(r io.Reader) sonic.Decoder {
	return api.NewDecoder(r)
}

// Valid 判断 data 是否为合法 JSON。
func Valid(data []byte) bool {
	return api.Valid(data)
}
