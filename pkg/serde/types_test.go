package serde

import (
	"fmt"
	"time"
)

type Node struct {
	Next  *Node
	Value any
}

type Link struct {
	Value string
	Next  *Link
}

type Pair struct {
	Name  string
	Left  *Pair
	Right *Pair
}

type Nullable struct {
	Child *Node
}

type Strict struct {
	Child *Node `serde:"notnull"`
}

type Point struct {
	X, Y int
}

type Holder struct {
	Origin  Point
	Items   []*Node
	Index   map[string]*Node
	Weights [3]float32
	Blob    []byte
	Skipped int `serde:"-"`
	hidden  int
}

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Circle struct {
	Radius float64
}

func (c *Circle) Area() float64 { return 3 * c.Radius * c.Radius }

type Canvas struct {
	Main   Shape
	Shapes []Shape
}

type Tree struct {
	Name     string
	Parent   *Tree
	Children []*Tree
}

type Loose struct {
	V any
}

type StrictAny struct {
	V any `serde:"notnull"`
}

type Narrow struct {
	V fmt.Stringer
}

type Event struct {
	At      time.Time
	Timeout time.Duration
	Meta    Meta
	Count   *int
}

type Meta struct {
	Source string            `json:"source" cbor:"source"`
	Labels map[string]string `json:"labels" cbor:"labels"`
}

// buildChain 构造长度为 n 的单链表，末尾节点携带 value。
func buildChain(n int, value any) *Node {
	head := &Node{}
	cur := head
	for i := 1; i < n; i++ {
		cur.Next = &Node{}
		cur = cur.Next
	}
	cur.Value = value
	return head
}

func buildLinks(n int) *Link {
	head := &Link{Value: "0"}
	cur := head
	for i := 1; i < n; i++ {
		cur.Next = &Link{Value: fmt.Sprint(i)}
		cur = cur.Next
	}
	return head
}
