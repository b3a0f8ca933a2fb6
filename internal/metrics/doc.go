// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供预处理链路的指标采集：基于 Prometheus 的计数与直方图，
以及基于 DDSketch 的延迟分位数统计。

# 概述

Collector 通过 promauto 注册到调用方给定的 Registerer（默认全局），
所有指标按 namespace 隔离。LatencyTracker 不依赖 Prometheus，
用于压测报告中输出 p50/p90/p99 等分位数。

# 核心类型

  - Collector：实现 cache.Recorder 与 multimodal.MetricsRecorder，
    记录请求、条目与缓存事件。
  - LatencyTracker：按操作名（如 "image.hit"、"apply"）维护 DDSketch。

# 主要能力

  - 请求指标：按状态（ok 或错误码）统计请求数与耗时。
  - 条目指标：按 modality/outcome（hit、miss、computed）统计。
  - 缓存指标：命中、未命中、淘汰、超容量拒绝计数，用量与条目数 Gauge。
*/
package metrics
