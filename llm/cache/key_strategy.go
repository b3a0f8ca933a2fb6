package cache

import (
	"github.com/BaSui01/mmcache/types"
)

// ContentKey identifies a raw item under a set of processing parameters.
// Equal keys mean the processed outputs are interchangeable.
type ContentKey string

// KeyStrategy 缓存键生成策略接口
type KeyStrategy interface {
	// GenerateKey 生成缓存键；params 是该模态下影响输出的参数
	GenerateKey(item types.RawItem, params any) ContentKey

	// Name 返回策略名称（用于日志和调试）
	Name() string
}

// KeyBuilder 将 KeyStrategy 与完整的处理参数绑定
type KeyBuilder struct {
	strategy KeyStrategy
}

// NewKeyBuilder 创建键构建器，strategy 为 nil 时使用 Hash 策略
func NewKeyBuilder(strategy KeyStrategy) *KeyBuilder {
	if strategy == nil {
		strategy = NewHashKeyStrategy()
	}
	return &KeyBuilder{strategy: strategy}
}

// Key 计算 item 在 params 下的内容键。只有 item 所属模态的参数参与计算，
// 条目数限制等不影响输出的配置不会进入键。
func (b *KeyBuilder) Key(item types.RawItem, params types.ProcessingParameters) ContentKey {
	return b.strategy.GenerateKey(item, params.KeyParams(item.Modality()))
}

// Strategy 返回底层策略
func (b *KeyBuilder) Strategy() KeyStrategy {
	return b.strategy
}
