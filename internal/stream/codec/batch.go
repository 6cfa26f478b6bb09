package codec

import (
	"bytes"
	"context"
	"io"

	"go.uber.org/atomic"

	"github.com/lk2023060901/graph-serde-go/pkg/util/conc"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// BatchEncoder 在协程池上并发编码互不相关的根对象，结果按输入顺序返回。
type BatchEncoder struct {
	codec Codec
	pool  *conc.Pool[[]byte]

	encoded atomic.Int64
	failed  atomic.Int64
}

// NewBatchEncoder 创建一个并发度为 workers 的 BatchEncoder，workers <= 0 时使用 GOMAXPROCS。
func NewBatchEncoder(c Codec, workers int) (*BatchEncoder, error) {
	if c == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	// 单个对象的 Serializer panic 只让对应的 Future 失败，不终止进程。
	pool, err := conc.NewPool[[]byte](workers, conc.WithName("batch-encoder"), conc.WithConcealPanic(true))
	if err != nil {
		return nil, err
	}
	return &BatchEncoder{codec: c, pool: pool}, nil
}

// EncodeAll 将 values 各自编码为一帧。任一对象失败（包括 panic）时返回第一个错误。
func (b *BatchEncoder) EncodeAll(ctx context.Context, values []any) ([][]byte, error) {
	futures := make([]*conc.Future[[]byte], 0, len(values))
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			// 已提交的任务仍需等待结束。
			_ = conc.BlockOnAll(futures...)
			return nil, err
		}
		futures = append(futures, b.pool.Submit(func() ([]byte, error) {
			var buf bytes.Buffer
			if err := b.codec.Encode(&buf, v); err != nil {
				b.failed.Inc()
				return nil, err
			}
			b.encoded.Inc()
			return buf.Bytes(), nil
		}))
	}

	if err := conc.AwaitAll(futures...); err != nil {
		_ = conc.BlockOnAll(futures...)
		return nil, err
	}
	frames := make([][]byte, len(futures))
	for i, f := range futures {
		frames[i] = f.Value()
	}
	return frames, nil
}

// WriteAll 编码 values 并按输入顺序写入 w。
func (b *BatchEncoder) WriteAll(ctx context.Context, w io.Writer, values []any) error {
	frames, err := b.EncodeAll(ctx, values)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if _, err := w.Write(frame); err != nil {
			return merr.WrapErrIoFailed("write batch", err)
		}
	}
	return nil
}

// Encoded 返回成功编码的对象数。
func (b *BatchEncoder) Encoded() int64 {
	return b.encoded.Load()
}

// Failed 返回编码失败的对象数。
func (b *BatchEncoder) Failed() int64 {
	return b.failed.Load()
}

// Release 释放协程池，Codec 的生命周期由调用方管理。
func (b *BatchEncoder) Release() {
	b.pool.Release()
}
