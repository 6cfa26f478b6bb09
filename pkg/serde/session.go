package serde

import (
	"reflect"

	"github.com/lk2023060901/graph-serde-go/pkg/log"
	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// Stats 为 Session 生命周期内的累计遍历统计。
type Stats struct {
	// WriteFrames/ReadFrames 为压入工作栈的帧数。
	WriteFrames int64
	ReadFrames  int64
	// TailSubstitutions 为编码时以改写当前帧代替压栈的次数。
	TailSubstitutions int64
	// MaxWriteDepth/MaxReadDepth 为工作栈达到过的最大深度。
	MaxWriteDepth int
	MaxReadDepth  int
	// ObjectsWritten/ObjectsRead 为顶层调用次数。
	ObjectsWritten int64
	ObjectsRead    int64
}

// Session 持有注册表、引用跟踪状态与配置，是编解码的入口。
//
// Session 不是并发安全的，同一时刻只能有一个调用在进行；
// 并发场景下为每个 goroutine 使用 Fork 得到的独立 Session。
type Session struct {
	cfg      Config
	logger   *log.MLogger
	registry *Registry
	refs     *references
	trace    traversalTrace
	stats    Stats
	depth    int
}

// NewSession 创建一个 Session。
func NewSession(opts ...Option) *Session {
	opt := defaultSessionOption()
	for _, o := range opts {
		o(opt)
	}
	return newSession(opt.cfg, opt.resolveLogger(), newRegistry(opt.cfg.RegistrationRequired, opt.cfg.InitialWorklistSize))
}

func newSession(cfg Config, logger *log.MLogger, registry *Registry) *Session {
	if !cfg.TailSubstitution {
		logger.Debug("tail substitution disabled")
	}
	return &Session{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		refs:     newReferences(cfg.References),
		trace: traversalTrace{
			logger:    logger,
			watermark: cfg.DepthWatermark,
		},
	}
}

// Fork 返回一个配置与注册信息相同、状态独立的 Session。
func (s *Session) Fork() *Session {
	return newSession(s.cfg, s.logger, s.registry.clone())
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Registry() *Registry {
	return s.registry
}

// Register 注册 v 的类型，见 Registry.Register。
func (s *Session) Register(v any, opts ...RegisterOption) (*Registration, error) {
	return s.registry.Register(v, opts...)
}

// Stats 返回累计统计。
func (s *Session) Stats() Stats {
	return s.stats
}

// ResetStats 清零累计统计。
func (s *Session) ResetStats() {
	s.stats = Stats{}
}

func (s *Session) enter() {
	s.depth++
}

func (s *Session) exit() {
	s.depth--
	if s.depth == 0 {
		s.refs.Reset()
		s.trace.flush(&s.stats)
	}
}

// WriteObject 写出非 nil 的 v，不带类型标签，读取时需提供相同的类型。
func (s *Session) WriteObject(out *wire.Output, v any) error {
	if v == nil {
		return merr.WrapErrParameterMissing("object")
	}
	s.enter()
	defer s.exit()
	s.stats.ObjectsWritten++

	rv := reflect.ValueOf(v)
	return s.writeValue(out, rv, rv.Type(), false)
}

// WriteObjectOrNull 写出可能为 nil 的 v，t 为 v 的静态类型。
func (s *Session) WriteObjectOrNull(out *wire.Output, v any, t reflect.Type) error {
	if t == nil {
		return merr.WrapErrParameterMissing("type")
	}
	s.enter()
	defer s.exit()
	s.stats.ObjectsWritten++

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		rv = reflect.Zero(t)
	}
	return s.writeValue(out, rv, t, true)
}

// WriteClassAndObject 先写出类型标签再写出 v，v 可以为 nil。
func (s *Session) WriteClassAndObject(out *wire.Output, v any) error {
	s.enter()
	defer s.exit()
	s.stats.ObjectsWritten++

	return s.writeValue(out, reflect.ValueOf(v), anyType, true)
}

// ReadObject 读取由 WriteObject 写出的、类型为 t 的值。
func (s *Session) ReadObject(in *wire.Input, t reflect.Type) (any, error) {
	if err := checkReadType(t); err != nil {
		return nil, err
	}
	s.enter()
	defer s.exit()
	s.stats.ObjectsRead++

	v, err := s.readValue(in, t, false)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ReadObjectOrNull 读取由 WriteObjectOrNull 写出的值，nil 以 t 的零值返回。
func (s *Session) ReadObjectOrNull(in *wire.Input, t reflect.Type) (any, error) {
	if err := checkReadType(t); err != nil {
		return nil, err
	}
	s.enter()
	defer s.exit()
	s.stats.ObjectsRead++

	v, err := s.readValue(in, t, true)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ReadClassAndObject 读取由 WriteClassAndObject 写出的值。
func (s *Session) ReadClassAndObject(in *wire.Input) (any, error) {
	s.enter()
	defer s.exit()
	s.stats.ObjectsRead++

	v, err := s.readValue(in, anyType, true)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// ReadAs 按类型参数读取。T 为接口类型时读取带类型标签的数据。
func ReadAs[T any](s *Session, in *wire.Input) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()

	var (
		v   any
		err error
	)
	if t.Kind() == reflect.Interface {
		v, err = s.ReadClassAndObject(in)
	} else {
		v, err = s.ReadObject(in, t)
	}
	if err != nil || v == nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, merr.WrapErrParameterInvalid(t.String(), reflect.TypeOf(v).String(), "decoded value has unexpected type")
	}
	return out, nil
}

// Marshal 以 WriteClassAndObject 编码 v 并返回字节。
func (s *Session) Marshal(v any) ([]byte, error) {
	out := wire.NewOutput(256)
	if err := s.WriteClassAndObject(out, v); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Unmarshal 解码 Marshal 的输出并存入 dst 指向的变量。
func (s *Session) Unmarshal(data []byte, dst any) error {
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return merr.WrapErrParameterInvalidMsg("unmarshal target must be a non-nil pointer, got %T", dst)
	}
	v, err := s.ReadClassAndObject(wire.NewInput(data))
	if err != nil {
		return err
	}
	elem := target.Elem()
	if v == nil {
		elem.SetZero()
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(elem.Type()) {
		return merr.WrapErrParameterInvalid(elem.Type().String(), rv.Type().String(), "decoded value has unexpected type")
	}
	elem.Set(rv)
	return nil
}

func checkReadType(t reflect.Type) error {
	if t == nil {
		return merr.WrapErrParameterMissing("type")
	}
	if t.Kind() == reflect.Interface {
		return merr.WrapErrParameterInvalidMsg("interface type %s carries no concrete type, use ReadClassAndObject", t)
	}
	return nil
}

// Reference 将 obj 绑定到最近预留的引用位。
// 自定义 Serializer 若在读取子值之前就创建了对象，应立即调用它。
func (s *Session) Reference(obj reflect.Value) {
	s.refs.Reference(obj)
}

// WriteValue 供自定义 Serializer 写出嵌套值，静态类型为 t，共享当前调用的引用状态。
func (s *Session) WriteValue(out *wire.Output, v reflect.Value, t reflect.Type) error {
	return s.writeValue(out, v, t, nullable(t))
}

// ReadValue 是 WriteValue 的逆操作。
func (s *Session) ReadValue(in *wire.Input, t reflect.Type) (reflect.Value, error) {
	return s.readValue(in, t, nullable(t))
}

func (s *Session) writeValue(out *wire.Output, v reflect.Value, static reflect.Type, canBeNull bool) error {
	if static.Kind() == reflect.Interface {
		if v.IsValid() && v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if isNil(v) {
			if !canBeNull {
				return merr.WrapErrProtocolViolation(static, "nil value in a non-nullable slot")
			}
			_, err := s.registry.WriteType(out, nil)
			return err
		}
		reg, err := s.registry.WriteType(out, v.Type())
		if err != nil {
			return err
		}
		return s.writeResolved(out, v, v.Type(), reg.Serializer, false)
	}

	ser, err := s.registry.SerializerFor(static)
	if err != nil {
		return err
	}
	return s.writeResolved(out, v, static, ser, canBeNull)
}

func (s *Session) writeResolved(out *wire.Output, v reflect.Value, t reflect.Type, ser Serializer, canBeNull bool) error {
	handled, err := s.refs.WriteReferenceOrNull(out, v, t, canBeNull)
	if err != nil || handled {
		return err
	}
	return ser.Write(s, out, v)
}

func (s *Session) readValue(in *wire.Input, static reflect.Type, canBeNull bool) (reflect.Value, error) {
	if static.Kind() == reflect.Interface {
		reg, err := s.registry.ReadType(in)
		if err != nil {
			return reflect.Value{}, err
		}
		if reg == nil {
			if !canBeNull {
				return reflect.Value{}, merr.WrapErrProtocolViolation(static, "nil value in a non-nullable slot")
			}
			return reflect.Zero(static), nil
		}
		return s.readResolved(in, reg.Type, reg.Serializer, false)
	}

	ser, err := s.registry.SerializerFor(static)
	if err != nil {
		return reflect.Value{}, err
	}
	return s.readResolved(in, static, ser, canBeNull)
}

func (s *Session) readResolved(in *wire.Input, t reflect.Type, ser Serializer, canBeNull bool) (reflect.Value, error) {
	pending, err := s.refs.ReadReferenceOrNull(in, t, canBeNull)
	if err != nil {
		return reflect.Value{}, err
	}
	if pending == RefResolved {
		return s.refs.ReadObject(), nil
	}
	v, err := ser.Read(s, in, t)
	if err != nil {
		return reflect.Value{}, err
	}
	if pending == s.refs.PendingDepth() {
		s.refs.Reference(v)
	}
	return v, nil
}
