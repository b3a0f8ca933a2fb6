// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供多模态预处理结果的内容寻址缓存：内容键生成与容量受限的
LRU 处理缓存。

# 概述

图像缩放、视频抽帧、音频特征提取代价较高，且同一素材经常在多个请求中
重复出现。本包按 "模态 + 原始载荷 + 影响输出的处理参数" 计算内容键，
缓存单条处理结果；缓存是否存在对最终结果没有任何可见影响。

# 核心接口

  - KeyStrategy：内容键生成策略接口，默认实现 HashKeyStrategy（SHA-256）。
  - KeyBuilder：把策略与 types.ProcessingParameters 绑定，只取条目所属模态的参数。
  - ProcessingCache：容量受限的 LRU，支持按字节或按条目计量。
  - Recorder：缓存事件接收者，由 internal/metrics.Collector 实现。

# 主要能力

  - 确定性内容键：跨进程稳定，按模态命名空间隔离，容器形态不影响键。
  - 严格 LRU：命中刷新顺序，Contains 不刷新；同等新旧按写入顺序淘汰。
  - 容量不变量：任意写入后 size <= capacity；超过容量的单个条目不保留。
  - 指纹校验：Fingerprint 使用 xxhash 独立计算载荷指纹，用于调试期检测键冲突。

# 使用方式

	c, err := cache.NewProcessingCache(1<<30, cache.WithLogger(logger))
	keys := cache.NewKeyBuilder(nil)
	key := keys.Key(item, params)
	if entry, ok := c.Get(key); ok {
		return entry.Item
	}
*/
package cache
