package serde

import (
	"cmp"
	"encoding"
	"reflect"
	"slices"

	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

type primitiveSerializer struct{}

func (primitiveSerializer) Write(_ *Session, out *wire.Output, v reflect.Value) error {
	return writePrimitive(out, v)
}

func (primitiveSerializer) Read(_ *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	return readPrimitive(in, t)
}

type bytesSerializer struct{}

func (bytesSerializer) Write(_ *Session, out *wire.Output, v reflect.Value) error {
	out.WriteBytes(v.Bytes())
	return nil
}

func (bytesSerializer) Read(_ *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	b, err := in.ReadBytes()
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(b).Convert(t), nil
}

// capacityHint 限制按流中声明的长度预分配，避免损坏的数据触发超大分配。
func capacityHint(n uint64, in *wire.Input) int {
	return int(min(n, uint64(in.Remaining())))
}

type sliceSerializer struct{}

func (sliceSerializer) Write(s *Session, out *wire.Output, v reflect.Value) error {
	n := v.Len()
	out.WriteUvarint(uint64(n))
	elem := v.Type().Elem()
	canBeNull := nullable(elem)
	for i := 0; i < n; i++ {
		if err := s.writeValue(out, v.Index(i), elem, canBeNull); err != nil {
			return err
		}
	}
	return nil
}

func (sliceSerializer) Read(s *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	n, err := in.ReadUvarint()
	if err != nil {
		return reflect.Value{}, err
	}
	elem := t.Elem()
	canBeNull := nullable(elem)
	result := reflect.MakeSlice(t, 0, capacityHint(n, in))
	for i := uint64(0); i < n; i++ {
		v, err := s.readValue(in, elem, canBeNull)
		if err != nil {
			return reflect.Value{}, err
		}
		result = reflect.Append(result, v)
	}
	return result, nil
}

type arraySerializer struct{}

func (arraySerializer) Write(s *Session, out *wire.Output, v reflect.Value) error {
	elem := v.Type().Elem()
	canBeNull := nullable(elem)
	for i := 0; i < v.Len(); i++ {
		if err := s.writeValue(out, v.Index(i), elem, canBeNull); err != nil {
			return err
		}
	}
	return nil
}

func (arraySerializer) Read(s *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	elem := t.Elem()
	canBeNull := nullable(elem)
	result := reflect.New(t).Elem()
	for i := 0; i < t.Len(); i++ {
		v, err := s.readValue(in, elem, canBeNull)
		if err != nil {
			return reflect.Value{}, err
		}
		result.Index(i).Set(v)
	}
	return result, nil
}

// mapSerializer 对可排序的 key 按序写出，保证相同的 map 得到相同的字节。
type mapSerializer struct{}

func (mapSerializer) Write(s *Session, out *wire.Output, v reflect.Value) error {
	t := v.Type()
	keyType, elemType := t.Key(), t.Elem()
	keyNull, elemNull := nullable(keyType), nullable(elemType)

	keys := v.MapKeys()
	sortKeys(keys)
	out.WriteUvarint(uint64(len(keys)))
	for _, k := range keys {
		if err := s.writeValue(out, k, keyType, keyNull); err != nil {
			return err
		}
		if err := s.writeValue(out, v.MapIndex(k), elemType, elemNull); err != nil {
			return err
		}
	}
	return nil
}

func (mapSerializer) Read(s *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	n, err := in.ReadUvarint()
	if err != nil {
		return reflect.Value{}, err
	}
	keyType, elemType := t.Key(), t.Elem()
	keyNull, elemNull := nullable(keyType), nullable(elemType)

	result := reflect.MakeMapWithSize(t, capacityHint(n, in))
	for i := uint64(0); i < n; i++ {
		k, err := s.readValue(in, keyType, keyNull)
		if err != nil {
			return reflect.Value{}, err
		}
		v, err := s.readValue(in, elemType, elemNull)
		if err != nil {
			return reflect.Value{}, err
		}
		result.SetMapIndex(k, v)
	}
	return result, nil
}

func sortKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	switch keys[0].Kind() {
	case reflect.String:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) })
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) })
	case reflect.Bool:
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case a.Bool():
				return 1
			default:
				return -1
			}
		})
	}
}

// pointerSerializer 处理指向非结构体的指针，指针在读取内容前先登记，
// 使内容中指回自身的引用可以解析。
type pointerSerializer struct{}

func (pointerSerializer) Write(s *Session, out *wire.Output, v reflect.Value) error {
	elem := v.Type().Elem()
	return s.writeValue(out, v.Elem(), elem, nullable(elem))
}

func (pointerSerializer) Read(s *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	elem := t.Elem()
	p := reflect.New(elem)
	s.Reference(p)
	v, err := s.readValue(in, elem, nullable(elem))
	if err != nil {
		return reflect.Value{}, err
	}
	p.Elem().Set(v)
	return p, nil
}

// binarySerializer 处理实现了 encoding.BinaryMarshaler/BinaryUnmarshaler 的类型，例如 time.Time。
type binarySerializer struct{}

func (binarySerializer) Write(_ *Session, out *wire.Output, v reflect.Value) error {
	m, ok := v.Interface().(encoding.BinaryMarshaler)
	if !ok {
		return merr.WrapErrTypeUnsupported(v.Type(), "not a BinaryMarshaler")
	}
	data, err := m.MarshalBinary()
	if err != nil {
		return merr.Combine(err, merr.WrapErrTypeUnsupported(v.Type(), "MarshalBinary failed"))
	}
	out.WriteBytes(data)
	return nil
}

func (binarySerializer) Read(_ *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	data, err := in.ReadBytes()
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	u, ok := p.Interface().(encoding.BinaryUnmarshaler)
	if !ok {
		return reflect.Value{}, merr.WrapErrTypeUnsupported(t, "not a BinaryUnmarshaler")
	}
	if err := u.UnmarshalBinary(data); err != nil {
		return reflect.Value{}, merr.Combine(err, merr.WrapErrStreamCorrupted("UnmarshalBinary failed for "+t.String(), in.Offset()))
	}
	return p.Elem(), nil
}
