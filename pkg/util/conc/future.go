// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package conc

import "github.com/lk2023060901/graph-serde-go/pkg/util/merr"

type future interface {
	wait()
	OK() bool
	Err() error
}

// Future 表示一个异步任务的结果。
// 可通过 Await 阻塞等待任务完成并取回结果与错误。
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		ch: make(chan struct{}),
	}
}

func (future *Future[T]) wait() {
	<-future.ch
}

// Await 阻塞直到任务完成，返回结果和错误。
func (future *Future[T]) Await() (T, error) {
	future.wait()
	return future.value, future.err
}

// Value 阻塞直到任务完成并返回结果。
func (future *Future[T]) Value() T {
	future.wait()
	return future.value
}

// OK 阻塞直到任务完成，无错误时返回 true。
func (future *Future[T]) OK() bool {
	future.wait()
	return future.err == nil
}

// Err 阻塞直到任务完成并返回错误。
func (future *Future[T]) Err() error {
	future.wait()
	return future.err
}

// Inner 返回任务完成信号通道，可用于 select。
func (future *Future[T]) Inner() <-chan struct{} {
	return future.ch
}

// Go 在独立的 goroutine 中执行 fn。
func Go[T any](fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	go func() {
		defer close(future.ch)
		res, err := fn()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	}()
	return future
}

// AwaitAll 等待全部 future 完成，返回遇到的第一个错误。
func AwaitAll[T future](futures ...T) error {
	for i := range futures {
		if !futures[i].OK() {
			return futures[i].Err()
		}
	}
	return nil
}

// BlockOnAll 等待全部 future 完成，并返回所有错误的组合。
func BlockOnAll[T future](futures ...T) error {
	var errs []error
	for _, f := range futures {
		if err := f.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return merr.Combine(errs...)
}
