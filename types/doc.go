// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 mmcache 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm/cache、llm/multimodal、
llm/tokenizer 与 config 提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Modality / CanonicalModalities — 模态标签与跨模态的固定顺序
  - RawItem                        — 原始输入：ImageItem、VideoItem、AudioItem，
    带 Validate 与规范化编码 WriteTo
  - Items / MMData / BatchRequest  — 单个或列表形式的条目与一次请求
  - ProcessingParameters           — 图像、视频、音频参数与每模态上限
  - Tensor / ProcessedItem         — 处理结果与其容量估算 SizeBytes
  - Error / ErrorCode              — 结构化错误，携带出错条目的模态与下标

# 主要能力

  - 规范化：MMData.Normalize 把单个条目与列表统一为序列
  - 错误工具链：AsError / GetErrorCode / IsErrorCode / AtItem
  - 参数校验：ProcessingParameters.Validate
*/
package types
