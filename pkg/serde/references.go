package serde

import (
	"fmt"
	"reflect"

	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// ReadReferenceOrNull 的特殊返回值，其余返回值为登记栈的深度。
const (
	// RefResolved 表示值已确定（nil 或回引用），通过 ReadObject 取得。
	RefResolved = -1
	// NoRef 是未被跟踪的值在登记栈上占用的位置，使登记栈深度与嵌套调用保持一致。
	NoRef = -2
)

// 引用标记：0 为 nil，1 为首次出现的新对象，n >= 2 为指向第 n-2 个对象的回引用。
const (
	markerNull     = 0
	markerNotNull  = 1
	markerFirstRef = 2
)

type refKey struct {
	ptr uintptr
	typ reflect.Type
}

// references 记录一次顶层调用内已写出或已读入的指针。
type references struct {
	enabled bool

	written     map[refKey]int
	nextWriteID int

	objects    []reflect.Value
	pending    []int
	readObject reflect.Value
}

func newReferences(enabled bool) *references {
	return &references{
		enabled: enabled,
		written: make(map[refKey]int),
	}
}

// tracked 判断类型 t 的值是否按身份跟踪，只有指针会被跟踪。
func (r *references) tracked(t reflect.Type) bool {
	return r.enabled && t.Kind() == reflect.Pointer
}

// WriteReferenceOrNull 写出 v 的空值/引用标记。
// 返回 true 表示值已完整写出（nil 或回引用），调用方不必再写内容。
func (r *references) WriteReferenceOrNull(out *wire.Output, v reflect.Value, t reflect.Type, canBeNull bool) (bool, error) {
	null := isNil(v)
	if !r.tracked(t) {
		if canBeNull {
			if null {
				out.WriteUvarint(markerNull)
				return true, nil
			}
			out.WriteUvarint(markerNotNull)
			return false, nil
		}
		if null {
			return false, merr.WrapErrProtocolViolation(t, "nil value in a non-nullable slot")
		}
		return false, nil
	}

	if null {
		if !canBeNull {
			return false, merr.WrapErrProtocolViolation(t, "nil value in a non-nullable slot")
		}
		out.WriteUvarint(markerNull)
		return true, nil
	}

	key := refKey{ptr: v.Pointer(), typ: t}
	if id, ok := r.written[key]; ok {
		out.WriteUvarint(uint64(id) + markerFirstRef)
		return true, nil
	}
	r.written[key] = r.nextWriteID
	r.nextWriteID++
	out.WriteUvarint(markerNotNull)
	return false, nil
}

// ReadReferenceOrNull 读取类型 t 的空值/引用标记。
//
// 返回 RefResolved 时结果由 ReadObject 给出；否则为新对象预留一个登记位并返回
// 登记栈深度，调用方在对象创建后以 Reference 绑定。
func (r *references) ReadReferenceOrNull(in *wire.Input, t reflect.Type, canBeNull bool) (int, error) {
	if !r.tracked(t) {
		if canBeNull {
			marker, err := in.ReadUvarint()
			if err != nil {
				return 0, err
			}
			switch marker {
			case markerNull:
				r.readObject = reflect.Zero(t)
				return RefResolved, nil
			case markerNotNull:
			default:
				return 0, merr.WrapErrStreamCorrupted(fmt.Sprintf("unexpected marker %d for %s", marker, t), in.Offset())
			}
		}
		r.pending = append(r.pending, NoRef)
		return len(r.pending), nil
	}

	marker, err := in.ReadUvarint()
	if err != nil {
		return 0, err
	}
	switch marker {
	case markerNull:
		if !canBeNull {
			return 0, merr.WrapErrProtocolViolation(t, "null marker for a non-nullable slot")
		}
		r.readObject = reflect.Zero(t)
		return RefResolved, nil
	case markerNotNull:
		r.pending = append(r.pending, len(r.objects))
		r.objects = append(r.objects, reflect.Value{})
		return len(r.pending), nil
	}

	slot := marker - markerFirstRef
	if slot >= uint64(len(r.objects)) {
		return 0, merr.WrapErrStreamCorrupted(fmt.Sprintf("reference to unknown slot %d", slot), in.Offset())
	}
	obj := r.objects[slot]
	if !obj.IsValid() {
		return 0, merr.WrapErrStreamCorrupted(fmt.Sprintf("reference to unbound slot %d", slot), in.Offset())
	}
	if obj.Type() != t {
		return 0, merr.WrapErrStreamCorrupted(fmt.Sprintf("slot %d holds %s, expect %s", slot, obj.Type(), t), in.Offset())
	}
	r.readObject = obj
	return RefResolved, nil
}

// ReadObject 返回最近一次 RefResolved 的结果。
func (r *references) ReadObject() reflect.Value {
	return r.readObject
}

// Reference 将 obj 绑定到最近预留的登记位。
func (r *references) Reference(obj reflect.Value) {
	n := len(r.pending)
	if n == 0 {
		return
	}
	slot := r.pending[n-1]
	r.pending = r.pending[:n-1]
	if slot != NoRef {
		r.objects[slot] = obj
	}
}

// PendingDepth 返回登记栈当前深度。
func (r *references) PendingDepth() int {
	return len(r.pending)
}

// Reset 清空全部状态，保留已分配的容量。
func (r *references) Reset() {
	clear(r.written)
	r.nextWriteID = 0
	clear(r.objects)
	r.objects = r.objects[:0]
	r.pending = r.pending[:0]
	r.readObject = reflect.Value{}
}
