// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 把多模态处理与处理缓存的事件导出为 OpenTelemetry 指标。

# 概述

[Metrics] 基于 OpenTelemetry Meter，实现与 internal/metrics.Collector
相同的事件接口：请求计数与延迟、按模态和结果（hit / miss / computed）
划分的条目计数，以及缓存命中、未命中、淘汰、拒绝事件。缓存用量通过
observable gauge 在采集时读取。

# 组合

[Fanout] 将同一事件转发给多个 [Recorder]，命令行工具用它同时驱动
Prometheus 收集器与 OTel 指标：

	rec := observability.Fanout{collector, otelMetrics}
	cache.NewProcessingCache(capacity, cache.WithRecorder(rec))
	multimodal.NewProcessor(params, enc, multimodal.WithMetrics(rec))
*/
package observability
