// Package cbor 封装 fxamacker/cbor，提供确定性编码（RFC 8949 §4.2）的 Marshal/Unmarshal。
package cbor

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// any 类型的目标默认解成 map[string]any，与 JSON 的行为一致。
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

// Marshal 以确定性编码输出 v，相同的逻辑数据总是得到相同的字节。
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Valid 检查 data 是否为单个完整的 CBOR 数据项。
func Valid(data []byte) bool {
	return decMode.Wellformed(data) == nil
}
