package serde

import (
	"reflect"

	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

func writePrimitive(out *wire.Output, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		out.WriteBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.WriteVarint(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out.WriteUvarint(v.Uint())
	case reflect.Float32:
		out.WriteFloat32(float32(v.Float()))
	case reflect.Float64:
		out.WriteFloat64(v.Float())
	case reflect.Complex64:
		c := v.Complex()
		out.WriteFloat32(float32(real(c)))
		out.WriteFloat32(float32(imag(c)))
	case reflect.Complex128:
		c := v.Complex()
		out.WriteFloat64(real(c))
		out.WriteFloat64(imag(c))
	case reflect.String:
		out.WriteString(v.String())
	default:
		return merr.WrapErrTypeUnsupported(v.Type(), "not a primitive")
	}
	return nil
}

// readPrimitive 读取一个类型为 t 的基础值，t 可以是具名类型（如 type Color int）。
func readPrimitive(in *wire.Input, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, err := in.ReadBool()
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := in.ReadVarint()
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowInt(i) {
			return reflect.Value{}, merr.WrapErrStreamCorrupted("integer overflows "+t.String(), in.Offset())
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := in.ReadUvarint()
		if err != nil {
			return reflect.Value{}, err
		}
		if v.OverflowUint(u) {
			return reflect.Value{}, merr.WrapErrStreamCorrupted("integer overflows "+t.String(), in.Offset())
		}
		v.SetUint(u)
	case reflect.Float32:
		f, err := in.ReadFloat32()
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(float64(f))
	case reflect.Float64:
		f, err := in.ReadFloat64()
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(f)
	case reflect.Complex64:
		re, err := in.ReadFloat32()
		if err != nil {
			return reflect.Value{}, err
		}
		im, err := in.ReadFloat32()
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetComplex(complex(float64(re), float64(im)))
	case reflect.Complex128:
		re, err := in.ReadFloat64()
		if err != nil {
			return reflect.Value{}, err
		}
		im, err := in.ReadFloat64()
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetComplex(complex(re, im))
	case reflect.String:
		s, err := in.ReadString()
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetString(s)
	default:
		return reflect.Value{}, merr.WrapErrTypeUnsupported(t, "not a primitive")
	}
	return v, nil
}
