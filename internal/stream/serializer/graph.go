package serializer

import (
	"sync"

	"github.com/lk2023060901/graph-serde-go/pkg/serde"
)

// GraphSerializer 以 serde.Session 编码任意对象图，输出包含根对象的类型标签。
//
// Session 不支持并发，这里为每次调用从池中取出模板 Session 的一个 Fork，
// 因此模板上的类型注册需要在创建 GraphSerializer 之前完成。
type GraphSerializer struct {
	base     *serde.Session
	sessions sync.Pool
}

var _ Serializer = (*GraphSerializer)(nil)

// NewGraphSerializer 创建一个以 base 为模板的 GraphSerializer。
func NewGraphSerializer(base *serde.Session) *GraphSerializer {
	g := &GraphSerializer{base: base}
	g.sessions.New = func() any {
		return base.Fork()
	}
	return g
}

// Session 返回模板 Session。
func (g *GraphSerializer) Session() *serde.Session {
	return g.base
}

// Acquire 从池中取出一个 Session，用完后必须 Release。
func (g *GraphSerializer) Acquire() *serde.Session {
	return g.sessions.Get().(*serde.Session)
}

// Release 将 Session 放回池中。
func (g *GraphSerializer) Release(s *serde.Session) {
	g.sessions.Put(s)
}

func (g *GraphSerializer) Marshal(v any) ([]byte, error) {
	s := g.Acquire()
	defer g.Release(s)
	return s.Marshal(v)
}

func (g *GraphSerializer) Unmarshal(data []byte, v any) error {
	s := g.Acquire()
	defer g.Release(s)
	return s.Unmarshal(data, v)
}
