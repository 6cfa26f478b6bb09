package serde

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

const (
	tagName    = "serde"
	tagSkip    = "-"
	tagNotNull = "notnull"
)

// FieldAccessor 读写结构体实例上的某个字段。
type FieldAccessor interface {
	Get(obj reflect.Value) (reflect.Value, error)
	Set(obj reflect.Value, v reflect.Value) error
}

type reflectAccessor struct {
	index int
}

func (a reflectAccessor) Get(obj reflect.Value) (reflect.Value, error) {
	if obj.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Newf("expect struct, got %s", obj.Kind())
	}
	return obj.Field(a.index), nil
}

func (a reflectAccessor) Set(obj reflect.Value, v reflect.Value) error {
	if obj.Kind() != reflect.Struct {
		return errors.Newf("expect struct, got %s", obj.Kind())
	}
	fv := obj.Field(a.index)
	if !fv.CanSet() {
		return errors.New("field is not settable")
	}
	if !v.IsValid() {
		fv.SetZero()
		return nil
	}
	if !v.Type().AssignableTo(fv.Type()) {
		return errors.Newf("cannot assign %s to %s", v.Type(), fv.Type())
	}
	fv.Set(v)
	return nil
}

// Field 描述结构体的一个可序列化字段。
type Field struct {
	Name  string
	Index int
	// Type 为字段声明类型。
	Type reflect.Type
	// Static 为编码时已知的具体类型，接口类型字段为 nil，运行时按类型标签决定。
	Static reflect.Type
	// CanBeNull 为 true 时字段前会写出空值/引用标记。
	CanBeNull bool
	// Simple 字段（bool、整数、浮点、复数、字符串）内联编码，不产生工作帧。
	Simple bool
	// ReuseSerializer 为 true 时首次解析到的 Serializer 会缓存在字段上。
	ReuseSerializer bool

	accessor   FieldAccessor
	serializer Serializer
	owner      reflect.Type
}

// Get 读取 obj 上的字段值。
func (f *Field) Get(obj reflect.Value) (reflect.Value, error) {
	v, err := f.accessor.Get(obj)
	if err != nil {
		return reflect.Value{}, merr.WrapErrFieldAccess(f.owner, f.Name, err)
	}
	return v, nil
}

// Set 将 v 写入 obj 的字段，v 为零值 reflect.Value 时写入类型零值。
func (f *Field) Set(obj reflect.Value, v reflect.Value) error {
	if err := f.accessor.Set(obj, v); err != nil {
		return merr.WrapErrFieldAccess(f.owner, f.Name, err)
	}
	return nil
}

// Serializer 返回字段上固定的 Serializer，可能为 nil。
func (f *Field) Serializer() Serializer {
	return f.serializer
}

// SetSerializer 为字段固定一个 Serializer，覆盖按类型解析的结果。
func (f *Field) SetSerializer(ser Serializer) {
	f.serializer = ser
}

// SetAccessor 替换字段的读写实现。
func (f *Field) SetAccessor(accessor FieldAccessor) {
	f.accessor = accessor
}

// cacheSerializer 只在尚未固定 Serializer 时生效。
func (f *Field) cacheSerializer(ser Serializer) {
	if f.ReuseSerializer && f.serializer == nil {
		f.serializer = ser
	}
}

// Layout 为结构体类型的字段布局。
type Layout struct {
	Type   reflect.Type
	Fields []*Field
}

// Field 按名称查找字段。
func (l *Layout) Field(name string) (*Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// NewLayout 按声明顺序收集 t 的导出字段。
//
// 标签 `serde:"-"` 跳过字段，`serde:"notnull"` 声明指针、接口、切片或 map 字段不可为 nil。
func NewLayout(t reflect.Type) (*Layout, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, merr.WrapErrTypeUnsupported(t, "layout requires a struct type")
	}

	layout := &Layout{Type: t}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get(tagName)
		if tag == tagSkip {
			continue
		}
		if !supported(sf.Type) {
			return nil, merr.WrapErrTypeUnsupported(sf.Type, "field "+t.String()+"."+sf.Name)
		}

		f := &Field{
			Name:     sf.Name,
			Index:    i,
			Type:     sf.Type,
			Simple:   isSimple(sf.Type),
			accessor: reflectAccessor{index: i},
			owner:    t,
		}
		if sf.Type.Kind() != reflect.Interface {
			f.Static = sf.Type
			f.ReuseSerializer = true
		}
		f.CanBeNull = nullable(sf.Type) && !hasOption(tag, tagNotNull)
		layout.Fields = append(layout.Fields, f)
	}
	return layout, nil
}

func hasOption(tag, option string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == option {
			return true
		}
	}
	return false
}

func isSimple(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

func supported(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Invalid:
		return false
	default:
		return true
	}
}
