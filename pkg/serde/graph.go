package serde

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/graph-serde-go/internal/stack"
	"github.com/lk2023060901/graph-serde-go/pkg/log"
	"github.com/lk2023060901/graph-serde-go/pkg/metrics"
	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// writeFrame 是编码工作栈上的一帧：正在写出的结构体及下一个待处理字段。
type writeFrame struct {
	serializer GraphSerializer
	object     reflect.Value
	fieldIndex int
}

// readFrame 是解码工作栈上的一帧。
// object 在帧首次到达栈顶时才创建；parent/parentField 不为空时，
// 帧完成后把 result 写回父对象的对应字段。
type readFrame struct {
	serializer GraphSerializer
	typ        reflect.Type
	result     reflect.Value
	object     reflect.Value
	fieldIndex int

	parent      reflect.Value
	parentField *Field
}

// structSerializer 是结构体类型的 GraphSerializer，同时服务于 T 与 *T。
//
// 每个实例缓存一对工作栈；嵌套调用发现缓存栈非空时改用新分配的栈。
type structSerializer struct {
	layout *Layout

	worklistSize  int
	writeWorklist *stack.Stack[*writeFrame]
	readWorklist  *stack.Stack[*readFrame]
}

var _ GraphSerializer = (*structSerializer)(nil)

func newStructSerializer(layout *Layout, worklistSize int) *structSerializer {
	return &structSerializer{
		layout:        layout,
		worklistSize:  worklistSize,
		writeWorklist: stack.New[*writeFrame](worklistSize),
		readWorklist:  stack.New[*readFrame](worklistSize),
	}
}

func (g *structSerializer) Fields() []*Field {
	return g.layout.Fields
}

// Layout 返回结构体的字段布局。
func (g *structSerializer) Layout() *Layout {
	return g.layout
}

func (g *structSerializer) NewInstance(t reflect.Type) (reflect.Value, reflect.Value) {
	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		return p, p.Elem()
	}
	obj := reflect.New(t).Elem()
	return obj, obj
}

func (g *structSerializer) Write(s *Session, out *wire.Output, v reflect.Value) error {
	worklist := g.writeWorklist
	if !worklist.IsEmpty() {
		s.logger.Debug("cached write worklist busy, allocating a new one", log.FieldType(g.layout.Type))
		worklist = stack.New[*writeFrame](g.worklistSize)
	}
	err := g.write(s, out, worklist, structValue(v))
	if err != nil {
		worklist.Reset()
	}
	return err
}

func (g *structSerializer) write(s *Session, out *wire.Output, worklist *stack.Stack[*writeFrame], root reflect.Value) error {
	worklist.Push(&writeFrame{serializer: g, object: root})
	s.trace.push(metrics.DirectionEncode, worklist.Len())

	for !worklist.IsEmpty() {
		current := worklist.Peek()
		fields := current.serializer.Fields()
		object := current.object
		suspended := false

		for i := current.fieldIndex; i < len(fields); i++ {
			field := fields[i]
			value, err := field.Get(object)
			if err != nil {
				return err
			}
			if field.Simple {
				if err := writePrimitive(out, value); err != nil {
					return err
				}
				continue
			}

			concrete, ser, canBeNull := field.Static, field.serializer, field.CanBeNull
			if concrete == nil {
				if value.Kind() == reflect.Interface {
					value = value.Elem()
				}
				if isNil(value) {
					if !canBeNull {
						return merr.WrapErrProtocolViolation(field.Type, "nil value in non-nullable field "+object.Type().String()+"."+field.Name)
					}
					if _, err := s.registry.WriteType(out, nil); err != nil {
						return err
					}
					continue
				}
				concrete = value.Type()
				reg, err := s.registry.WriteType(out, concrete)
				if err != nil {
					return errors.Wrapf(err, "field %s.%s", object.Type(), field.Name)
				}
				if ser == nil {
					ser = reg.Serializer
				}
				canBeNull = false
			} else if ser == nil {
				ser, err = s.registry.SerializerFor(concrete)
				if err != nil {
					return errors.Wrapf(err, "field %s.%s", object.Type(), field.Name)
				}
				field.cacheSerializer(ser)
			}

			handled, err := s.refs.WriteReferenceOrNull(out, value, concrete, canBeNull)
			if err != nil {
				return errors.Wrapf(err, "field %s.%s", object.Type(), field.Name)
			}
			if handled {
				continue
			}

			if child, ok := ser.(GraphSerializer); ok {
				childObject := structValue(value)
				if i+1 < len(fields) || !s.cfg.TailSubstitution {
					current.fieldIndex = i + 1
					worklist.Push(&writeFrame{serializer: child, object: childObject})
					s.trace.push(metrics.DirectionEncode, worklist.Len())
				} else {
					// 最后一个字段：当前帧已无剩余工作，用子对象的帧替换栈顶。
					worklist.Replace(&writeFrame{serializer: child, object: childObject})
					s.trace.tailSubstitution()
				}
				suspended = true
				break
			}

			if err := ser.Write(s, out, value); err != nil {
				return err
			}
		}

		if suspended {
			continue
		}
		if popped := worklist.Pop(); popped != current {
			return merr.WrapErrTraversalInvariant("popped write frame is not the current frame", worklist.Len())
		}
	}
	return nil
}

func (g *structSerializer) Read(s *Session, in *wire.Input, t reflect.Type) (reflect.Value, error) {
	worklist := g.readWorklist
	if !worklist.IsEmpty() {
		s.logger.Debug("cached read worklist busy, allocating a new one", log.FieldType(g.layout.Type))
		worklist = stack.New[*readFrame](g.worklistSize)
	}
	result, err := g.read(s, in, worklist, t)
	if err != nil {
		worklist.Reset()
	}
	return result, err
}

func (g *structSerializer) read(s *Session, in *wire.Input, worklist *stack.Stack[*readFrame], t reflect.Type) (reflect.Value, error) {
	worklist.Push(&readFrame{serializer: g, typ: t})
	s.trace.push(metrics.DirectionDecode, worklist.Len())

	for {
		current := worklist.Peek()
		if !current.object.IsValid() {
			// 先登记再填充字段，字段中指回该对象的回引用才能解析。
			current.result, current.object = current.serializer.NewInstance(current.typ)
			s.refs.Reference(current.result)
		}
		fields := current.serializer.Fields()
		object := current.object
		suspended := false

		for i := current.fieldIndex; i < len(fields); i++ {
			field := fields[i]
			if field.Simple {
				value, err := readPrimitive(in, field.Type)
				if err != nil {
					return reflect.Value{}, err
				}
				if err := field.Set(object, value); err != nil {
					return reflect.Value{}, err
				}
				continue
			}

			concrete, ser, canBeNull := field.Static, field.serializer, field.CanBeNull
			if concrete == nil {
				reg, err := s.registry.ReadType(in)
				if err != nil {
					return reflect.Value{}, errors.Wrapf(err, "field %s.%s", object.Type(), field.Name)
				}
				if reg == nil {
					if !canBeNull {
						return reflect.Value{}, merr.WrapErrProtocolViolation(field.Type, "nil value in non-nullable field "+object.Type().String()+"."+field.Name)
					}
					if err := field.Set(object, reflect.Value{}); err != nil {
						return reflect.Value{}, err
					}
					continue
				}
				concrete = reg.Type
				if ser == nil {
					ser = reg.Serializer
				}
				canBeNull = false
			} else if ser == nil {
				var err error
				ser, err = s.registry.SerializerFor(concrete)
				if err != nil {
					return reflect.Value{}, errors.Wrapf(err, "field %s.%s", object.Type(), field.Name)
				}
				field.cacheSerializer(ser)
			}

			pending, err := s.refs.ReadReferenceOrNull(in, concrete, canBeNull)
			if err != nil {
				return reflect.Value{}, errors.Wrapf(err, "field %s.%s", object.Type(), field.Name)
			}
			if pending == RefResolved {
				if err := field.Set(object, s.refs.ReadObject()); err != nil {
					return reflect.Value{}, err
				}
				continue
			}

			if child, ok := ser.(GraphSerializer); ok {
				current.fieldIndex = i + 1
				worklist.Push(&readFrame{
					serializer:  child,
					typ:         concrete,
					parent:      object,
					parentField: field,
				})
				s.trace.push(metrics.DirectionDecode, worklist.Len())
				suspended = true
				break
			}

			value, err := ser.Read(s, in, concrete)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := field.Set(object, value); err != nil {
				return reflect.Value{}, err
			}
			if pending == s.refs.PendingDepth() {
				s.refs.Reference(value)
			}
		}

		if suspended {
			continue
		}
		if popped := worklist.Pop(); popped != current {
			return reflect.Value{}, merr.WrapErrTraversalInvariant("popped read frame is not the current frame", worklist.Len())
		}
		if current.parentField != nil {
			if err := current.parentField.Set(current.parent, current.result); err != nil {
				return reflect.Value{}, err
			}
		}
		if worklist.IsEmpty() {
			return current.result, nil
		}
	}
}

// traversalTrace 汇总一次顶层调用内的遍历统计，调用结束时并入 Stats 与 Prometheus 指标。
type traversalTrace struct {
	logger    *log.MLogger
	watermark int

	writeFrames int64
	readFrames  int64
	tails       int64
	maxWrite    int
	maxRead     int
}

func (t *traversalTrace) push(direction string, depth int) {
	if direction == metrics.DirectionEncode {
		t.writeFrames++
		t.maxWrite = max(t.maxWrite, depth)
	} else {
		t.readFrames++
		t.maxRead = max(t.maxRead, depth)
	}
	if t.watermark > 0 && depth == t.watermark {
		t.logger.RatedDebug(1, "worklist depth reached watermark",
			log.FieldDirection(direction), log.FieldDepth(depth))
	}
}

func (t *traversalTrace) tailSubstitution() {
	t.tails++
}

// flush 将本次调用的统计并入 stats 并上报指标，然后清零。
func (t *traversalTrace) flush(stats *Stats) {
	if t.writeFrames > 0 {
		stats.WriteFrames += t.writeFrames
		stats.TailSubstitutions += t.tails
		stats.MaxWriteDepth = max(stats.MaxWriteDepth, t.maxWrite)
		metrics.TraversalFrames.WithLabelValues(metrics.DirectionEncode).Add(float64(t.writeFrames))
		metrics.TraversalTailSubstitutions.Add(float64(t.tails))
		metrics.TraversalMaxDepth.WithLabelValues(metrics.DirectionEncode).Observe(float64(t.maxWrite))
	}
	if t.readFrames > 0 {
		stats.ReadFrames += t.readFrames
		stats.MaxReadDepth = max(stats.MaxReadDepth, t.maxRead)
		metrics.TraversalFrames.WithLabelValues(metrics.DirectionDecode).Add(float64(t.readFrames))
		metrics.TraversalMaxDepth.WithLabelValues(metrics.DirectionDecode).Observe(float64(t.maxRead))
	}
	if t.watermark > 0 && max(t.maxWrite, t.maxRead) >= t.watermark {
		t.logger.Debug("deep traversal finished",
			zap.Int("maxWriteDepth", t.maxWrite),
			zap.Int("maxReadDepth", t.maxRead),
			zap.Int64("tailSubstitutions", t.tails))
	}
	t.writeFrames, t.readFrames, t.tails = 0, 0, 0
	t.maxWrite, t.maxRead = 0, 0
}
