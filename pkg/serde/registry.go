package serde

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
	"github.com/lk2023060901/graph-serde-go/pkg/util/typeutil"
)

// 类型标签：0 表示 nil，其余为注册 ID + 1。
const tagNull = 0

// FirstUserID 之下的 ID 保留给内置类型。
const FirstUserID int32 = 64

var builtinTypes = []reflect.Type{
	reflect.TypeOf(false),
	reflect.TypeOf(int(0)),
	reflect.TypeOf(int8(0)),
	reflect.TypeOf(int16(0)),
	reflect.TypeOf(int32(0)),
	reflect.TypeOf(int64(0)),
	reflect.TypeOf(uint(0)),
	reflect.TypeOf(uint8(0)),
	reflect.TypeOf(uint16(0)),
	reflect.TypeOf(uint32(0)),
	reflect.TypeOf(uint64(0)),
	reflect.TypeOf(float32(0)),
	reflect.TypeOf(float64(0)),
	reflect.TypeOf(complex64(0)),
	reflect.TypeOf(complex128(0)),
	reflect.TypeOf(""),
	reflect.TypeOf([]byte(nil)),
	reflect.TypeOf([]any(nil)),
	reflect.TypeOf([]string(nil)),
	reflect.TypeOf([]int(nil)),
	reflect.TypeOf([]int64(nil)),
	reflect.TypeOf([]float64(nil)),
	reflect.TypeOf(map[string]any(nil)),
	reflect.TypeOf(map[string]string(nil)),
	reflect.TypeOf(time.Time{}),
	reflect.TypeOf(time.Duration(0)),
}

var (
	byteType              = reflect.TypeOf(byte(0))
	binaryMarshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

// Registration 记录一个已注册类型。
type Registration struct {
	ID         int32
	Type       reflect.Type
	Serializer Serializer

	explicit bool
}

type registerOption struct {
	id         int32
	serializer Serializer
}

// RegisterOption 用于配置单次注册的选项函数。
type RegisterOption func(opt *registerOption)

// WithID 指定注册 ID，编码端与解码端必须一致。
func WithID(id int32) RegisterOption {
	return func(opt *registerOption) {
		opt.id = id
	}
}

// WithSerializer 为类型指定 Serializer，替代按种类推导的默认实现。
func WithSerializer(ser Serializer) RegisterOption {
	return func(opt *registerOption) {
		opt.serializer = ser
	}
}

// Registry 维护类型与 ID、Serializer 的映射，不是并发安全的。
type Registry struct {
	required     bool
	worklistSize int

	byType map[reflect.Type]*Registration
	byID   map[int32]*Registration
	ids    typeutil.Set[int32]
	nextID int32

	resolved map[reflect.Type]Serializer
	graphs   map[reflect.Type]*structSerializer
}

func newRegistry(required bool, worklistSize int) *Registry {
	r := &Registry{
		required:     required,
		worklistSize: worklistSize,
		byType:       make(map[reflect.Type]*Registration),
		byID:         make(map[int32]*Registration),
		ids:          typeutil.NewSet[int32](),
		nextID:       FirstUserID,
		resolved:     make(map[reflect.Type]Serializer),
		graphs:       make(map[reflect.Type]*structSerializer),
	}
	for i, t := range builtinTypes {
		r.add(&Registration{ID: int32(i + 1), Type: t})
	}
	return r
}

func (r *Registry) add(reg *Registration) {
	r.byType[reg.Type] = reg
	r.byID[reg.ID] = reg
	r.ids.Insert(reg.ID)
	if reg.explicit {
		r.resolved[reg.Type] = reg.Serializer
	}
}

// Register 注册 v 的类型；v 也可以直接是 reflect.Type。
// 重复注册同一类型是幂等的，但不能把已占用的 ID 分配给其他类型。
func (r *Registry) Register(v any, opts ...RegisterOption) (*Registration, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	if t == nil {
		return nil, merr.WrapErrParameterMissing("type")
	}
	if !supported(t) || t.Kind() == reflect.Interface {
		return nil, merr.WrapErrTypeUnsupported(t)
	}

	opt := &registerOption{}
	for _, o := range opts {
		o(opt)
	}
	if opt.id < 0 {
		return nil, merr.WrapErrParameterInvalidMsg("registration id must be >= 0, got %d", opt.id)
	}

	if reg, ok := r.byType[t]; ok {
		if opt.id != 0 && opt.id != reg.ID {
			return nil, merr.WrapErrTypeConflict(t, opt.id, fmt.Sprintf("already registered with id %d", reg.ID))
		}
		if opt.serializer != nil {
			reg.Serializer = opt.serializer
			reg.explicit = true
			r.resolved[t] = opt.serializer
		}
		return reg, nil
	}

	id := opt.id
	if id == 0 {
		for r.ids.Contain(r.nextID) {
			r.nextID++
		}
		id = r.nextID
		r.nextID++
	} else if other, ok := r.byID[id]; ok {
		return nil, merr.WrapErrTypeConflict(t, id, "id taken by "+other.Type.String())
	}

	reg := &Registration{
		ID:         id,
		Type:       t,
		Serializer: opt.serializer,
		explicit:   opt.serializer != nil,
	}
	r.add(reg)
	return reg, nil
}

// Registration 返回类型 t 的注册信息。
func (r *Registry) Registration(t reflect.Type) (*Registration, bool) {
	reg, ok := r.byType[t]
	return reg, ok
}

// Lookup 按 ID 查找注册信息。
func (r *Registry) Lookup(id int32) (*Registration, bool) {
	reg, ok := r.byID[id]
	return reg, ok
}

// IDs 返回全部已注册 ID（含内置类型），升序排列。
func (r *Registry) IDs() []int32 {
	return typeutil.Sorted(r.ids)
}

// SerializerFor 返回类型 t 的 Serializer：显式注册优先，其次按种类推导，
// 结构体及指向结构体的指针得到 GraphSerializer。
func (r *Registry) SerializerFor(t reflect.Type) (Serializer, error) {
	if ser, ok := r.resolved[t]; ok {
		return ser, nil
	}
	ser, err := r.newSerializer(t)
	if err != nil {
		return nil, err
	}
	r.resolved[t] = ser
	return ser, nil
}

func (r *Registry) newSerializer(t reflect.Type) (Serializer, error) {
	if isBinary(t) {
		return binarySerializer{}, nil
	}
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem() == byteType {
			return bytesSerializer{}, nil
		}
		return sliceSerializer{}, nil
	case reflect.Array:
		return arraySerializer{}, nil
	case reflect.Map:
		return mapSerializer{}, nil
	case reflect.Pointer:
		elem := t.Elem()
		if elem.Kind() == reflect.Struct && !isBinary(elem) && !r.hasExplicit(elem) {
			return r.graphFor(elem)
		}
		return pointerSerializer{}, nil
	case reflect.Struct:
		return r.graphFor(t)
	}
	if isSimple(t) {
		return primitiveSerializer{}, nil
	}
	return nil, merr.WrapErrTypeUnsupported(t)
}

func (r *Registry) hasExplicit(t reflect.Type) bool {
	reg, ok := r.byType[t]
	return ok && reg.explicit
}

// graphFor 返回结构体类型 t 的 GraphSerializer，同一类型共享一个实例。
func (r *Registry) graphFor(t reflect.Type) (*structSerializer, error) {
	if g, ok := r.graphs[t]; ok {
		return g, nil
	}
	if r.required {
		_, byValue := r.byType[t]
		_, byPointer := r.byType[reflect.PointerTo(t)]
		if !byValue && !byPointer {
			return nil, merr.WrapErrTypeUnregistered(t)
		}
	}
	layout, err := NewLayout(t)
	if err != nil {
		return nil, err
	}
	g := newStructSerializer(layout, r.worklistSize)
	r.graphs[t] = g
	return g, nil
}

func (r *Registry) resolve(reg *Registration) error {
	if reg.Serializer != nil {
		return nil
	}
	ser, err := r.SerializerFor(reg.Type)
	if err != nil {
		return err
	}
	reg.Serializer = ser
	return nil
}

// WriteType 写出类型 t 的标签，t 为 nil 时写出 nil 标签。
func (r *Registry) WriteType(out *wire.Output, t reflect.Type) (*Registration, error) {
	if t == nil {
		out.WriteUvarint(tagNull)
		return nil, nil
	}
	reg, ok := r.byType[t]
	if !ok {
		return nil, merr.WrapErrTypeUnregistered(t, "dynamic values require registration")
	}
	if err := r.resolve(reg); err != nil {
		return nil, err
	}
	out.WriteUvarint(uint64(reg.ID) + 1)
	return reg, nil
}

// ReadType 读取类型标签，nil 标签返回 (nil, nil)，未知 ID 返回 ErrTypeUnresolvable。
func (r *Registry) ReadType(in *wire.Input) (*Registration, error) {
	tag, err := in.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if tag == tagNull {
		return nil, nil
	}
	if tag-1 > math.MaxInt32 {
		return nil, merr.WrapErrTypeUnresolvable(-1, fmt.Sprintf("type tag %d out of range", tag))
	}
	id := int32(tag - 1)
	reg, ok := r.byID[id]
	if !ok {
		return nil, merr.WrapErrTypeUnresolvable(id)
	}
	if err := r.resolve(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// clone 复制注册表项与显式 Serializer，推导出的 Serializer 会在新注册表中重新创建。
func (r *Registry) clone() *Registry {
	c := newRegistry(r.required, r.worklistSize)
	c.nextID = r.nextID
	for t, reg := range r.byType {
		if _, builtin := c.byType[t]; builtin && !reg.explicit {
			continue
		}
		cp := &Registration{ID: reg.ID, Type: reg.Type, explicit: reg.explicit}
		if reg.explicit {
			cp.Serializer = reg.Serializer
		}
		c.add(cp)
	}
	return c
}

func isBinary(t reflect.Type) bool {
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface &&
		t.Implements(binaryMarshalerType) &&
		reflect.PointerTo(t).Implements(binaryUnmarshalerType)
}
