// Package serde 实现堆上有界的对象图序列化。
//
// 结构体类型由 GraphSerializer 以显式工作栈遍历，任意深度的链表或树都不会
// 消耗调用栈；叶子类型（基础类型、切片、map 等）交由普通 Serializer 处理。
// 指针按身份跟踪，共享与循环引用在解码后保持原有的拓扑结构。
package serde

import (
	"reflect"

	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
)

// Serializer 负责单个类型值的编解码。
//
// Read 返回类型为 t 的值；实现如需在读取子值前暴露自身（例如指针），
// 应先调用 Session.Reference 登记。
type Serializer interface {
	Write(s *Session, out *wire.Output, v reflect.Value) error
	Read(s *Session, in *wire.Input, t reflect.Type) (reflect.Value, error)
}

// GraphSerializer 是可被遍历引擎展开的 Serializer：按 Fields 的顺序逐个处理字段，
// 复合字段以新的工作帧代替递归调用。
type GraphSerializer interface {
	Serializer

	// Fields 返回字段布局，顺序即编码顺序。
	Fields() []*Field

	// NewInstance 为类型 t（结构体或指向结构体的指针）创建实例。
	// result 是写回父字段或返回给调用方的值，object 是可寻址的结构体本身。
	NewInstance(t reflect.Type) (result, object reflect.Value)
}

// IsGraph 判断 ser 是否具备非递归遍历能力。
func IsGraph(ser Serializer) bool {
	_, ok := ser.(GraphSerializer)
	return ok
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// nullable 判断类型 t 的值是否可能为 nil。
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

// structValue 返回 v 所指向（或本身即是）的结构体值。
func structValue(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Pointer {
		return v.Elem()
	}
	return v
}
