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

import (
	"fmt"
	"runtime"

	ants "github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

// Pool 是对 ants.Pool 的泛型封装，提交的任务以 Future 的形式返回结果。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建一个容量为 cap 的协程池，cap <= 0 时使用 GOMAXPROCS。
func NewPool[T any](cap int, opts ...PoolOption) (*Pool[T], error) {
	if cap <= 0 {
		cap = runtime.GOMAXPROCS(0)
	}

	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("failed to create pool %q: %v", opt.name, err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}, nil
}

// Submit 提交一个任务，返回的 Future 在任务结束后可取回结果。
// 提交失败（例如池已释放）时，Future 立即以该错误完成；
// 任务 panic 时 Future 以 panic 信息作为错误完成。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		defer func() {
			if x := recover(); x != nil {
				future.err = fmt.Errorf("panicked with error: %v", x)
				panic(x)
			}
		}()
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}

	return future
}

// Cap 返回协程池容量。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回正在执行任务的 worker 数量。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free 返回空闲 worker 数量。
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release 释放协程池，之后不可再提交任务。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}
