package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TiktokenTokenizer 基于 tiktoken 的 BPE 分词器.
type TiktokenTokenizer struct {
	model     string
	maxTokens int
	enc       *tiktoken.Tiktoken
	encoding  string
	once      sync.Once
	initErr   error
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器.
// model 可以是模型名（gpt-4o），也可以直接是编码名（o200k_base）。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	if model == "" {
		return nil, fmt.Errorf("tiktoken tokenizer requires a model or encoding name")
	}
	return &TiktokenTokenizer{model: model, maxTokens: 8192}, nil
}

// WithMaxTokens 覆盖默认的上下文长度.
func (t *TiktokenTokenizer) WithMaxTokens(n int) *TiktokenTokenizer {
	if n > 0 {
		t.maxTokens = n
	}
	return t
}

// init 在首次使用时加载编码（可能需要下载 BPE 数据）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		if enc, err := tiktoken.EncodingForModel(t.model); err == nil {
			t.enc, t.encoding = enc, t.model
			return
		}
		if enc, err := tiktoken.GetEncoding(t.model); err == nil {
			t.enc, t.encoding = enc, t.model
			return
		}
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding for %s: %w", t.model, err)
			return
		}
		t.enc, t.encoding = enc, defaultEncoding
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	ids, err := t.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Encode 编码文本；特殊 token 文本按普通文本处理.
func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	return t.enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	if err := t.init(); err != nil {
		return "", err
	}
	return t.enc.Decode(tokens), nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	if t.encoding == "" {
		return fmt.Sprintf("tiktoken[%s]", t.model)
	}
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
