// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 是模型输入预处理层的根目录，本身不导出任何 API。

# 子包

  - llm/multimodal：每模态处理器、处理器注册表与批量编排器 Processor，
    负责把提示词与图像、视频、音频转换为 token 序列与张量。
  - llm/cache：内容键构造与按容量淘汰的 LRU 处理缓存。
  - llm/tokenizer：分词器抽象（tiktoken、估算器）与占位符提示词编码。
  - llm/observability：基于 OpenTelemetry Meter 的处理与缓存指标。

# 数据流

	BatchRequest ──► Processor.Apply ──► KeyBuilder ──► ProcessingCache
	                       │                               │ miss
	                       ▼                               ▼
	                PromptEncoder                    Registry/Adapter
	                       │                               │
	                       └──────────► ProcessingResult ◄─┘

缓存只影响耗时，不影响结果：带缓存与不带缓存的处理器对同一请求
产生结构相等的 ProcessingResult。
*/
package llm
