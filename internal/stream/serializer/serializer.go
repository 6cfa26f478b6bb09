package serializer

// Serializer 抽象了“对象 <-> 字节流”的序列化能力。
//
// 调用方通过接口注入具体实现：对象图使用 GraphSerializer，
// 普通数据可使用 JSON 或 CBOR。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象。
	//
	// v 必须为指针类型，用于接收解码结果；*any 总是可以接收。
	Unmarshal(data []byte, v any) error
}
