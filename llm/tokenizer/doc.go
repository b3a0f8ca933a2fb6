// Package tokenizer 提供统一的分词接口，支持 tiktoken 精确编码与 CJK 估算器，
// 并负责把带多模态占位符的提示词编码为 token 序列。
package tokenizer
