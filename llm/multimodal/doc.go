// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 multimodal 提供多模态输入预处理：图像、视频、音频经过确定性变换
得到模型可用的张量，提示词中的占位符按条目展开为 token 序列。

# 概述

本包解决两个核心问题：一是为每种模态提供统一的 Adapter，
按模态标签分发处理；二是由 Processor 编排一次请求的全部条目，
可选地通过 cache.ProcessingCache 复用已处理的结果。
无论命中与否、条目以单个还是列表形式给出，结果都与不使用缓存时完全一致。

# 核心接口

  - Adapter：单模态处理器，Process 为纯函数，畸形输入返回
    MALFORMED_INPUT 且从不写入缓存。
  - Registry：按模态标签注册与查找 Adapter。
  - Processor：批处理编排器，Apply 完成形状归一化、数量限制、
    提示词编码、逐条处理与占位符展开。
  - ProcessingResult：token 序列 + 按模态有序的处理结果，支持结构化比较。

# 主要能力

  - 去重：同一请求内相同内容只计算一次。
  - 并发：未命中条目通过 errgroup 并行计算，跨请求的同键未命中由
    singleflight 合并。
  - 校验：可选的键校验模式用 xxhash 指纹检测内容键冲突。
  - 观测：zap 日志、Prometheus 指标、DDSketch 延迟分位数与 OpenTelemetry span。
*/
package multimodal
