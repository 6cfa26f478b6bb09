package serde

import (
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/graph-serde-go/pkg/log"
	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

type SessionSuite struct {
	suite.Suite

	logger *log.MLogger
}

func (s *SessionSuite) SetupSuite() {
	lg, _, err := log.InitTestLogger(s.T(), &log.Config{Level: "info"})
	s.Require().NoError(err)
	s.logger = &log.MLogger{Logger: lg}
}

func (s *SessionSuite) newSession(opts ...Option) *Session {
	opts = append([]Option{WithLogger(s.logger)}, opts...)
	return NewSession(opts...)
}

func (s *SessionSuite) encode(sess *Session, v any) []byte {
	out := wire.NewOutput(0)
	s.Require().NoError(sess.WriteObject(out, v))
	return out.Bytes()
}

func (s *SessionSuite) TestDeepChain() {
	const depth = 100000
	sess := s.newSession()

	data := s.encode(sess, buildChain(depth, "Hello"))
	head, err := ReadAs[*Node](sess, wire.NewInput(data))
	s.Require().NoError(err)

	count := 0
	last := head
	for n := head; n != nil; n = n.Next {
		count++
		last = n
	}
	s.Equal(depth, count)
	s.Equal("Hello", last.Value)

	stats := sess.Stats()
	s.EqualValues(depth, stats.WriteFrames)
	s.EqualValues(depth, stats.ReadFrames)
	s.Equal(depth, stats.MaxWriteDepth)
	s.Equal(depth, stats.MaxReadDepth)
	s.EqualValues(0, stats.TailSubstitutions)
}

func (s *SessionSuite) TestTailSubstitutionBoundsWriteDepth() {
	const depth = 200000
	sess := s.newSession()

	data := s.encode(sess, buildLinks(depth))
	head, err := ReadAs[*Link](sess, wire.NewInput(data))
	s.Require().NoError(err)

	count := 0
	var last *Link
	for l := head; l != nil; l = l.Next {
		count++
		last = l
	}
	s.Equal(depth, count)
	s.Equal("199999", last.Value)

	stats := sess.Stats()
	s.Equal(1, stats.MaxWriteDepth)
	s.EqualValues(depth-1, stats.TailSubstitutions)
	s.EqualValues(1, stats.WriteFrames)
	s.Equal(depth, stats.MaxReadDepth)
}

func (s *SessionSuite) TestTailSubstitutionIsByteIdentical() {
	links := buildLinks(1000)
	with := s.encode(s.newSession(), links)
	without := s.encode(s.newSession(WithTailSubstitution(false)), links)
	s.Equal(with, without)

	chain := buildChain(1000, int64(7))
	s.Equal(s.encode(s.newSession(), chain), s.encode(s.newSession(WithTailSubstitution(false)), chain))
}

func (s *SessionSuite) TestCycles() {
	sess := s.newSession()

	a := &Pair{Name: "a"}
	b := &Pair{Name: "b", Left: a}
	a.Left = b
	a.Right = a

	data := s.encode(sess, a)
	out, err := ReadAs[*Pair](sess, wire.NewInput(data))
	s.Require().NoError(err)

	s.Equal("a", out.Name)
	s.Equal("b", out.Left.Name)
	s.Same(out, out.Left.Left)
	s.Same(out, out.Right)
	s.Nil(out.Left.Right)
}

func (s *SessionSuite) TestSharedReferences() {
	sess := s.newSession()

	shared := &Pair{Name: "shared"}
	root := &Pair{Name: "root", Left: shared, Right: shared}

	out, err := ReadAs[*Pair](sess, wire.NewInput(s.encode(sess, root)))
	s.Require().NoError(err)
	s.Same(out.Left, out.Right)
	s.Equal("shared", out.Left.Name)

	noRefs := s.newSession(WithReferences(false))
	out, err = ReadAs[*Pair](noRefs, wire.NewInput(s.encode(noRefs, root)))
	s.Require().NoError(err)
	s.NotSame(out.Left, out.Right)
	s.Equal(out.Left, out.Right)
}

func (s *SessionSuite) TestNulls() {
	sess := s.newSession()

	out, err := ReadAs[*Node](sess, wire.NewInput(s.encode(sess, &Node{})))
	s.Require().NoError(err)
	s.Nil(out.Next)
	s.Nil(out.Value)

	var typedNil *Node
	err = sess.WriteObject(wire.NewOutput(0), typedNil)
	s.ErrorIs(err, merr.ErrProtocolViolation)

	o := wire.NewOutput(0)
	s.Require().NoError(sess.WriteObjectOrNull(o, nil, reflect.TypeOf(typedNil)))
	v, err := sess.ReadObjectOrNull(wire.NewInput(o.Bytes()), reflect.TypeOf(typedNil))
	s.Require().NoError(err)
	s.Nil(v.(*Node))
}

func (s *SessionSuite) TestNonNullableField() {
	sess := s.newSession()

	err := sess.WriteObject(wire.NewOutput(0), &Strict{})
	s.ErrorIs(err, merr.ErrProtocolViolation)
	s.True(merr.IsProtocolError(err))

	// 同样布局的可空类型写出 nil，按不可空类型读取时失败。
	data := s.encode(sess, &Nullable{})
	_, err = ReadAs[*Strict](sess, wire.NewInput(data))
	s.ErrorIs(err, merr.ErrProtocolViolation)

	out, err := ReadAs[*Strict](sess, wire.NewInput(s.encode(sess, &Strict{Child: &Node{Value: 1}})))
	s.Require().NoError(err)
	s.Equal(1, out.Child.Value)

	// 接口字段同样受 notnull 约束，nil 不会以空类型标签写出。
	o := wire.NewOutput(0)
	err = sess.WriteObject(o, &StrictAny{})
	s.ErrorIs(err, merr.ErrProtocolViolation)
	s.True(merr.IsProtocolError(err))

	data = s.encode(sess, &Loose{})
	_, err = ReadAs[*StrictAny](sess, wire.NewInput(data))
	s.ErrorIs(err, merr.ErrProtocolViolation)

	strict, err := ReadAs[*StrictAny](sess, wire.NewInput(s.encode(sess, &StrictAny{V: "set"})))
	s.Require().NoError(err)
	s.Equal("set", strict.V)
}

func (s *SessionSuite) TestValueStructsAndContainers() {
	sess := s.newSession()

	a, b := &Node{Value: "a"}, &Node{Value: "b"}
	in := &Holder{
		Origin:  Point{X: 3, Y: -4},
		Items:   []*Node{a, b, nil, a},
		Index:   map[string]*Node{"a": a, "b": b},
		Weights: [3]float32{0.5, 1, 2},
		Blob:    []byte("blob"),
		Skipped: 42,
	}

	out, err := ReadAs[*Holder](sess, wire.NewInput(s.encode(sess, in)))
	s.Require().NoError(err)

	s.Equal(Point{X: 3, Y: -4}, out.Origin)
	s.Len(out.Items, 4)
	s.Same(out.Items[0], out.Items[3])
	s.Nil(out.Items[2])
	s.Same(out.Items[0], out.Index["a"])
	s.Same(out.Items[1], out.Index["b"])
	s.Equal("b", out.Index["b"].Value)
	s.Equal([3]float32{0.5, 1, 2}, out.Weights)
	s.Equal([]byte("blob"), out.Blob)
	s.Zero(out.Skipped)

	byValue, err := ReadAs[Point](sess, wire.NewInput(s.encode(sess, Point{X: 1, Y: 2})))
	s.Require().NoError(err)
	s.Equal(Point{X: 1, Y: 2}, byValue)
}

func (s *SessionSuite) TestInterfaces() {
	sess := s.newSession()
	_, err := sess.Register(Square{})
	s.Require().NoError(err)
	_, err = sess.Register(&Circle{})
	s.Require().NoError(err)

	circle := &Circle{Radius: 1}
	in := &Canvas{Main: circle, Shapes: []Shape{Square{Side: 2}, circle, nil}}

	out, err := ReadAs[*Canvas](sess, wire.NewInput(s.encode(sess, in)))
	s.Require().NoError(err)
	s.Equal(float64(3), out.Main.Area())
	s.Require().Len(out.Shapes, 3)
	s.Equal(Square{Side: 2}, out.Shapes[0])
	s.Same(out.Main, out.Shapes[1])
	s.Nil(out.Shapes[2])
}

func (s *SessionSuite) TestUnresolvableTypeTag() {
	writer := s.newSession()
	_, err := writer.Register(Square{}, WithID(100))
	s.Require().NoError(err)
	data := s.encode(writer, &Canvas{Main: Square{Side: 1}})

	reader := s.newSession()
	_, err = ReadAs[*Canvas](reader, wire.NewInput(data))
	s.ErrorIs(err, merr.ErrTypeUnresolvable)
	s.True(merr.IsProtocolError(err))

	_, err = writer.Register(Square{}, WithID(101))
	s.ErrorIs(err, merr.ErrTypeConflict)
	_, err = writer.Register(Point{}, WithID(100))
	s.ErrorIs(err, merr.ErrTypeConflict)
}

func (s *SessionSuite) TestUnregisteredDynamicType() {
	sess := s.newSession()
	err := sess.WriteObject(wire.NewOutput(0), &Canvas{Main: Square{Side: 1}})
	s.ErrorIs(err, merr.ErrTypeUnregistered)
}

func (s *SessionSuite) TestRegistrationRequired() {
	sess := s.newSession(WithRegistrationRequired(true))
	err := sess.WriteObject(wire.NewOutput(0), &Node{})
	s.ErrorIs(err, merr.ErrTypeUnregistered)

	_, err = sess.Register(&Node{})
	s.Require().NoError(err)
	out, err := ReadAs[*Node](sess, wire.NewInput(s.encode(sess, &Node{Value: "ok"})))
	s.Require().NoError(err)
	s.Equal("ok", out.Value)
}

func (s *SessionSuite) TestFieldAccessMismatch() {
	sess := s.newSession()
	data := s.encode(sess, &Loose{V: 5})

	_, err := ReadAs[*Narrow](sess, wire.NewInput(data))
	s.ErrorIs(err, merr.ErrFieldAccess)
}

type failingAccessor struct {
	err error
}

func (a failingAccessor) Get(reflect.Value) (reflect.Value, error) {
	return reflect.Value{}, a.err
}

func (a failingAccessor) Set(reflect.Value, reflect.Value) error {
	return a.err
}

func (s *SessionSuite) TestFieldAccessorFailure() {
	sess := s.newSession()
	ser, err := sess.Registry().SerializerFor(reflect.TypeOf(&Node{}))
	s.Require().NoError(err)
	s.Require().True(IsGraph(ser))

	cause := errors.New("accessor broken")
	ser.(GraphSerializer).Fields()[1].SetAccessor(failingAccessor{err: cause})

	err = sess.WriteObject(wire.NewOutput(0), &Node{Value: 1})
	s.ErrorIs(err, merr.ErrFieldAccess)
	s.ErrorIs(err, cause)
	s.Equal(merr.SystemError, merr.GetErrorType(err))

	// 出错后缓存的工作栈被清空，可以继续使用。
	g := ser.(*structSerializer)
	s.True(g.writeWorklist.IsEmpty())
}

// strayFrameAccessor 在字段读写时向缓存的工作栈压入多余的帧，模拟簿记缺陷。
type strayFrameAccessor struct {
	inner FieldAccessor
	onGet func()
	onSet func()
}

func (a strayFrameAccessor) Get(obj reflect.Value) (reflect.Value, error) {
	if a.onGet != nil {
		a.onGet()
	}
	return a.inner.Get(obj)
}

func (a strayFrameAccessor) Set(obj reflect.Value, v reflect.Value) error {
	if a.onSet != nil {
		a.onSet()
	}
	return a.inner.Set(obj, v)
}

func (s *SessionSuite) nodeSerializer(sess *Session) *structSerializer {
	ser, err := sess.Registry().SerializerFor(reflect.TypeOf(&Node{}))
	s.Require().NoError(err)
	return ser.(*structSerializer)
}

func (s *SessionSuite) TestFrameMismatchIsInvariantError() {
	data := s.encode(s.newSession(), &Node{Value: 1})

	writer := s.newSession()
	g := s.nodeSerializer(writer)
	value := g.Fields()[1]
	value.SetAccessor(strayFrameAccessor{
		inner: reflectAccessor{index: value.Index},
		onGet: func() { g.writeWorklist.Push(&writeFrame{}) },
	})
	err := writer.WriteObject(wire.NewOutput(0), &Node{Value: 1})
	s.ErrorIs(err, merr.ErrTraversalInvariant)
	s.True(merr.IsInvariantError(err))
	s.False(merr.IsProtocolError(err))
	s.True(g.writeWorklist.IsEmpty())

	reader := s.newSession()
	g = s.nodeSerializer(reader)
	value = g.Fields()[1]
	value.SetAccessor(strayFrameAccessor{
		inner: reflectAccessor{index: value.Index},
		onSet: func() { g.readWorklist.Push(&readFrame{}) },
	})
	_, err = ReadAs[*Node](reader, wire.NewInput(data))
	s.ErrorIs(err, merr.ErrTraversalInvariant)
	s.True(merr.IsInvariantError(err))
	s.False(merr.IsProtocolError(err))
	s.True(g.readWorklist.IsEmpty())
}

func (s *SessionSuite) TestNestedTraversalAllocatesWorklist() {
	sess := s.newSession()

	root := &Tree{Name: "root"}
	for i := 0; i < 3; i++ {
		child := &Tree{Name: "child", Parent: root}
		child.Children = []*Tree{{Name: "leaf", Parent: child}}
		root.Children = append(root.Children, child)
	}

	out, err := ReadAs[*Tree](sess, wire.NewInput(s.encode(sess, root)))
	s.Require().NoError(err)
	s.Require().Len(out.Children, 3)
	for _, child := range out.Children {
		s.Same(out, child.Parent)
		s.Require().Len(child.Children, 1)
		s.Same(child, child.Children[0].Parent)
		s.Equal("leaf", child.Children[0].Name)
	}

	ser, err := sess.Registry().SerializerFor(reflect.TypeOf(root))
	s.Require().NoError(err)
	g := ser.(*structSerializer)
	s.True(g.writeWorklist.IsEmpty())
	s.True(g.readWorklist.IsEmpty())
}

func (s *SessionSuite) TestLeafSerializers() {
	sess := s.newSession()
	_, err := sess.Register(Meta{}, WithSerializer(JSONSerializer{}))
	s.Require().NoError(err)

	count := 7
	at := time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)
	in := &Event{
		At:      at,
		Timeout: 3 * time.Second,
		Meta:    Meta{Source: "sensor", Labels: map[string]string{"zone": "a"}},
		Count:   &count,
	}

	out, err := ReadAs[*Event](sess, wire.NewInput(s.encode(sess, in)))
	s.Require().NoError(err)
	s.True(at.Equal(out.At))
	s.Equal(3*time.Second, out.Timeout)
	s.Equal(in.Meta, out.Meta)
	s.Equal(7, *out.Count)

	cborSess := s.newSession()
	_, err = cborSess.Register(Meta{}, WithSerializer(CBORSerializer{}))
	s.Require().NoError(err)
	out, err = ReadAs[*Event](cborSess, wire.NewInput(s.encode(cborSess, in)))
	s.Require().NoError(err)
	s.Equal(in.Meta, out.Meta)
}

func (s *SessionSuite) TestClassAndObject() {
	sess := s.newSession()
	_, err := sess.Register(&Node{})
	s.Require().NoError(err)

	data, err := sess.Marshal(&Node{Value: []any{"x", int64(2), nil}})
	s.Require().NoError(err)

	var out *Node
	s.Require().NoError(sess.Unmarshal(data, &out))
	s.Equal([]any{"x", int64(2), nil}, out.Value)

	o := wire.NewOutput(0)
	s.Require().NoError(sess.WriteClassAndObject(o, nil))
	v, err := sess.ReadClassAndObject(wire.NewInput(o.Bytes()))
	s.Require().NoError(err)
	s.Nil(v)

	o.Reset()
	s.Require().NoError(sess.WriteClassAndObject(o, map[string]any{"k": "v"}))
	generic, err := ReadAs[any](sess, wire.NewInput(o.Bytes()))
	s.Require().NoError(err)
	s.Equal(map[string]any{"k": "v"}, generic)

	s.Error(sess.Unmarshal(data, out))
	_, err = sess.ReadObject(wire.NewInput(data), reflect.TypeOf((*Shape)(nil)).Elem())
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *SessionSuite) TestFork() {
	sess := s.newSession()
	_, err := sess.Register(Square{}, WithID(200))
	s.Require().NoError(err)

	fork := sess.Fork()
	reg, ok := fork.Registry().Registration(reflect.TypeOf(Square{}))
	s.Require().True(ok)
	s.EqualValues(200, reg.ID)
	s.Contains(fork.Registry().IDs(), int32(200))

	data := s.encode(fork, &Canvas{Main: Square{Side: 4}})
	out, err := ReadAs[*Canvas](sess, wire.NewInput(data))
	s.Require().NoError(err)
	s.Equal(Square{Side: 4}, out.Main)
}

func (s *SessionSuite) TestCorruptedStream() {
	sess := s.newSession()
	data := s.encode(sess, buildChain(10, "Hello"))

	_, err := ReadAs[*Node](sess, wire.NewInput(data[:len(data)-3]))
	s.ErrorIs(err, merr.ErrStreamCorrupted)

	// 回引用指向尚不存在的对象。
	_, err = ReadAs[*Node](sess, wire.NewInput([]byte{5}))
	s.ErrorIs(err, merr.ErrStreamCorrupted)

	// 可以继续正常解码。
	out, err := ReadAs[*Node](sess, wire.NewInput(data))
	s.Require().NoError(err)
	s.NotNil(out.Next)
}

func TestSession(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}
