// Package telemetry 初始化 mmcache 的 OpenTelemetry SDK。
//
// 启用后通过 OTLP gRPC 导出两类数据：
//   - multimodal.apply / multimodal.process_item 两级 span，由 Processor 通过
//     Providers.Tracer 获取 tracer 后创建；
//   - llm/observability 注册的 mmcache.* 计数器、直方图与缓存占用 gauge，
//     由 Providers.Meter 提供 meter。
//
// 禁用时不连接任何外部服务，Tracer/Meter 退回全局 noop 实现。
package telemetry
