// Package stack 提供遍历引擎使用的 LIFO 工作栈。
package stack

// Stack 是一个无锁、可增长的后进先出栈。
//
// 说明：
//   - 不做并发保护，每次遍历独占一个实例；
//   - Pop/Peek 要求栈非空，违反约定属于编程错误，会直接 panic。
type Stack[T any] struct {
	items []T
}

// New 创建一个预分配 initialSize 容量的栈。
func New[T any](initialSize int) *Stack[T] {
	if initialSize < 0 {
		initialSize = 0
	}
	return &Stack[T]{items: make([]T, 0, initialSize)}
}

// Push 压入一个元素。
func (s *Stack[T]) Push(item T) {
	s.items = append(s.items, item)
}

// Pop 弹出并返回栈顶元素。
func (s *Stack[T]) Pop() T {
	n := len(s.items) - 1
	item := s.items[n]
	var zero T
	// 清掉引用，避免已弹出的帧继续持有对象图。
	s.items[n] = zero
	s.items = s.items[:n]
	return item
}

// Peek 返回栈顶元素但不弹出。
func (s *Stack[T]) Peek() T {
	return s.items[len(s.items)-1]
}

// Replace 用 item 覆盖栈顶元素。
func (s *Stack[T]) Replace(item T) {
	s.items[len(s.items)-1] = item
}

func (s *Stack[T]) IsEmpty() bool {
	return len(s.items) == 0
}

func (s *Stack[T]) Len() int {
	return len(s.items)
}

// Reset 清空栈，保留底层容量。
func (s *Stack[T]) Reset() {
	clear(s.items)
	s.items = s.items[:0]
}
