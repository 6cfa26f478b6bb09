package serializer

import (
	"github.com/lk2023060901/graph-serde-go/internal/cbor"
)

// CBORSerializer 使用确定性 CBOR 编码，相同的值总是得到相同的字节。
type CBORSerializer struct{}

var _ Serializer = (*CBORSerializer)(nil)

func (CBORSerializer) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (CBORSerializer) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
