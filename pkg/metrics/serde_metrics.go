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
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TraversalFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: graphserdeNamespace,
			Subsystem: traversalSubsystem,
			Name:      "frames_total",
			Help:      "遍历过程中压入工作栈的帧总数",
		}, []string{directionLabelName})

	TraversalTailSubstitutions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: graphserdeNamespace,
			Subsystem: traversalSubsystem,
			Name:      "tail_substitutions_total",
			Help:      "编码时以尾部替换代替压栈的次数",
		})

	TraversalMaxDepth = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: graphserdeNamespace,
			Subsystem: traversalSubsystem,
			Name:      "max_depth",
			Help:      "单次顶层调用中工作栈达到的最大深度",
			Buckets:   depthBuckets,
		}, []string{directionLabelName})

	StreamBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: graphserdeNamespace,
			Subsystem: streamSubsystem,
			Name:      "bytes_total",
			Help:      "经由流编解码器写出或读入的字节总数",
		}, []string{directionLabelName})

	StreamFrameSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: graphserdeNamespace,
			Subsystem: streamSubsystem,
			Name:      "frame_size_bytes",
			Help:      "单帧大小分布",
			Buckets:   sizeBuckets,
		}, []string{directionLabelName})

	StreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: graphserdeNamespace,
			Subsystem: streamSubsystem,
			Name:      "errors_total",
			Help:      "流编解码各阶段的失败次数",
		}, []string{stageLabelName})
)
