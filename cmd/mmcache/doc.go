// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 mmcache 命令行程序入口。

# 概述

cmd/mmcache 用生成的多模态请求对比两条处理链路：不带缓存的基线处理器
与带 LRU 处理缓存的处理器。任何一批结果不一致即以非零状态退出，
结束时输出缓存统计与按模态划分的延迟分位数。

# 子命令

  - bench：--config、--batches、--hit-rate、--simplify-rate、--seed、
    --metrics-addr（运行期间暴露 Prometheus /metrics）
  - version：版本信息，Version、BuildTime、GitCommit 通过 ldflags 设置

# 可观测性

日志使用 zap（由 log 配置段构建），指标同时写入 Prometheus 与
OpenTelemetry（telemetry 启用时经 OTLP 导出），span 覆盖每次
Apply 与每个条目的处理。
*/
package main
