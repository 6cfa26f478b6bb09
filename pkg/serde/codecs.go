package serde

import (
	"reflect"

	"github.com/lk2023060901/graph-serde-go/internal/cbor"
	"github.com/lk2023060901/graph-serde-go/internal/json"
	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// JSONSerializer 将值整体编码为一段 JSON 字节串，适用于不需要保持引用身份的不透明值。
//
//	s.Register(Config{}, serde.WithSerializer(serde.JSONSerializer{}))
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

func (JSONSerializer) Write(_ *Session, out *wire.Output, v reflect.Value) error {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return merr.Combine(err, merr.WrapErrTypeUnsupported(v.Type(), "json marshal failed"))
	}
	out.WriteBytes(data)
	return nil
}

func (JSONSerializer) Read(_ *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	data, err := in.ReadBytes()
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	if err := json.Unmarshal(data, p.Interface()); err != nil {
		return reflect.Value{}, merr.Combine(err, merr.WrapErrStreamCorrupted("json unmarshal failed for "+t.String(), in.Offset()))
	}
	return p.Elem(), nil
}

// CBORSerializer 与 JSONSerializer 相同，但使用确定性 CBOR 编码。
type CBORSerializer struct{}

var _ Serializer = CBORSerializer{}

func (CBORSerializer) Write(_ *Session, out *wire.Output, v reflect.Value) error {
	data, err := cbor.Marshal(v.Interface())
	if err != nil {
		return merr.Combine(err, merr.WrapErrTypeUnsupported(v.Type(), "cbor marshal failed"))
	}
	out.WriteBytes(data)
	return nil
}

func (CBORSerializer) Read(_ *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	data, err := in.ReadBytes()
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	if err := cbor.Unmarshal(data, p.Interface()); err != nil {
		return reflect.Value{}, merr.Combine(err, merr.WrapErrStreamCorrupted("cbor unmarshal failed for "+t.String(), in.Offset()))
	}
	return p.Elem(), nil
}
