package tokenizer

import (
	"fmt"
	"strings"

	"github.com/BaSui01/mmcache/types"
)

// Placeholder 描述一个模态在提示词中的占位文本与对应的 token ID.
type Placeholder struct {
	Text    string `yaml:"text" json:"text"`
	TokenID int    `yaml:"token_id" json:"token_id"`
}

// DefaultPlaceholders 默认占位符. Token ID 位于任何内置词表之外.
func DefaultPlaceholders() map[types.Modality]Placeholder {
	return map[types.Modality]Placeholder{
		types.ModalityImage: {Text: "<|image|>", TokenID: 1<<20 + 1},
		types.ModalityVideo: {Text: "<|video|>", TokenID: 1<<20 + 2},
		types.ModalityAudio: {Text: "<|audio|>", TokenID: 1<<20 + 3},
	}
}

// PlaceholderRef 是占位 token 在编码结果中的位置.
type PlaceholderRef struct {
	Modality types.Modality
	Position int
}

// EncodedPrompt 是提示词编码结果.
type EncodedPrompt struct {
	TokenIDs     []int
	Placeholders []PlaceholderRef // 按出现顺序
}

// PromptEncoder 把 (提示词, 各模态条目数) 映射为 token 序列.
// 实现必须是确定性的纯函数.
type PromptEncoder interface {
	Encode(prompt string, counts map[types.Modality]int) (*EncodedPrompt, error)
}

// TemplateEncoder 在占位符处切分提示词，文本片段交给 Tokenizer 编码，
// 每个占位符产生一个占位 token.
type TemplateEncoder struct {
	tokenizer    Tokenizer
	placeholders map[types.Modality]Placeholder
}

// NewTemplateEncoder 创建模板编码器，placeholders 为 nil 时使用默认占位符.
func NewTemplateEncoder(tok Tokenizer, placeholders map[types.Modality]Placeholder) (*TemplateEncoder, error) {
	if tok == nil {
		return nil, fmt.Errorf("template encoder requires a tokenizer")
	}
	if placeholders == nil {
		placeholders = DefaultPlaceholders()
	}
	for _, m := range types.CanonicalModalities {
		p, ok := placeholders[m]
		if !ok || p.Text == "" {
			return nil, fmt.Errorf("missing placeholder for %s", m)
		}
	}
	return &TemplateEncoder{tokenizer: tok, placeholders: placeholders}, nil
}

// Encode 实现 PromptEncoder. 提示词中每个模态的占位符数必须与条目数一致，
// 否则返回 PROMPT_MISMATCH 错误.
func (e *TemplateEncoder) Encode(prompt string, counts map[types.Modality]int) (*EncodedPrompt, error) {
	out := &EncodedPrompt{}
	seen := make(map[types.Modality]int, len(types.CanonicalModalities))

	rest := prompt
	for len(rest) > 0 {
		m, idx := e.nextPlaceholder(rest)
		if idx < 0 {
			if err := e.appendText(out, rest); err != nil {
				return nil, err
			}
			break
		}
		if err := e.appendText(out, rest[:idx]); err != nil {
			return nil, err
		}
		out.Placeholders = append(out.Placeholders, PlaceholderRef{Modality: m, Position: len(out.TokenIDs)})
		out.TokenIDs = append(out.TokenIDs, e.placeholders[m].TokenID)
		seen[m]++
		rest = rest[idx+len(e.placeholders[m].Text):]
	}

	for _, m := range types.CanonicalModalities {
		if seen[m] != counts[m] {
			return nil, types.Errorf(types.ErrPromptMismatch,
				"prompt has %d %s placeholders but %d items were given", seen[m], m, counts[m])
		}
	}
	return out, nil
}

// DummyPrompt 生成与条目数匹配的提示词，用于压测与正确性校验.
func (e *TemplateEncoder) DummyPrompt(counts map[types.Modality]int) string {
	var b strings.Builder
	for _, m := range types.CanonicalModalities {
		b.WriteString(strings.Repeat(e.placeholders[m].Text, counts[m]))
	}
	b.WriteString("Describe the media above.")
	return b.String()
}

// Placeholder 返回模态的占位符.
func (e *TemplateEncoder) Placeholder(m types.Modality) Placeholder {
	return e.placeholders[m]
}

// nextPlaceholder 返回最早出现的占位符及其位置，未找到时 idx 为 -1.
func (e *TemplateEncoder) nextPlaceholder(s string) (types.Modality, int) {
	best, bestIdx := types.Modality(""), -1
	for _, m := range types.CanonicalModalities {
		idx := strings.Index(s, e.placeholders[m].Text)
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = m, idx
		}
	}
	return best, bestIdx
}

func (e *TemplateEncoder) appendText(out *EncodedPrompt, text string) error {
	if text == "" {
		return nil
	}
	ids, err := e.tokenizer.Encode(text)
	if err != nil {
		return types.NewError(types.ErrTokenizerError, "encode prompt text").WithCause(err)
	}
	out.TokenIDs = append(out.TokenIDs, ids...)
	return nil
}
