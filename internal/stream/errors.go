package stream

import (
	"errors"
	"fmt"
)

// Stage 表示帧编解码链路中的处理阶段。
//
// 主要用于在日志与监控中标记错误发生的位置。
type Stage string

const (
	StageSerialize   Stage = "serialize"   // 对象 -> 字节
	StageCompress    Stage = "compress"    // 字节 -> 压缩字节
	StageWriteFrame  Stage = "write_frame" // 帧 -> 底层流
	StageReadFrame   Stage = "read_frame"  // 底层流 -> 帧
	StageDecompress  Stage = "decompress"  // 压缩字节 -> 字节
	StageVerify      Stage = "verify"      // 版本与校验和检查
	StageDeserialize Stage = "deserialize" // 字节 -> 对象
)

// Encoding 判断阶段是否属于写出方向。
func (s Stage) Encoding() bool {
	switch s {
	case StageSerialize, StageCompress, StageWriteFrame:
		return true
	default:
		return false
	}
}

// 统一的错误码常量，用于日志/监控的稳定字符串。
const (
	ErrCodeEncodeFailed = "stream:encode_failed"
	ErrCodeDecodeFailed = "stream:decode_failed"
)

var (
	// ErrEncodeFailed 表示写出方向的任一阶段失败。
	ErrEncodeFailed = errors.New(ErrCodeEncodeFailed)

	// ErrDecodeFailed 表示读入方向的任一阶段失败。
	ErrDecodeFailed = errors.New(ErrCodeDecodeFailed)
)

// StageError 记录失败的阶段，Unwrap 返回底层错误，merr 错误码沿链可见。
type StageError struct {
	Stage Stage
	Err   error
}

// WrapStage 为 err 标记阶段，err 为 nil 时返回 nil。
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrEncodeFailed/ErrDecodeFailed) 按阶段方向匹配。
func (e *StageError) Is(target error) bool {
	if e.Stage.Encoding() {
		return target == ErrEncodeFailed
	}
	return target == ErrDecodeFailed
}

// StageOf 返回 err 链上最近一次标记的阶段。
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
