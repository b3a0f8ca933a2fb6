package tokenizer

import (
	"fmt"
)

// Tokenizer是统一的分词接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Encode 将文本转换为 token ID 列表.
	Encode(text string) ([]int, error)

	// Decode 将 token ID 转换回文本.
	Decode(tokens []int) (string, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Kind 分词器类型
type Kind string

const (
	KindEstimator Kind = "estimator"
	KindTiktoken  Kind = "tiktoken"
)

// New 按类型创建分词器.
// tiktoken 的编码数据在首次使用时加载，因此构造本身不会访问网络。
func New(kind Kind, model string) (Tokenizer, error) {
	switch kind {
	case KindEstimator, "":
		return NewEstimatorTokenizer(model, 0), nil
	case KindTiktoken:
		return NewTiktokenTokenizer(model)
	default:
		return nil, fmt.Errorf("unknown tokenizer kind: %q", kind)
	}
}
