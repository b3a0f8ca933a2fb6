package tokenizer

import (
	"fmt"
	"hash/fnv"
	"unicode"
	"unicode/utf8"
)

// estimatorVocabSize bounds the pseudo token ids produced by the estimator.
const estimatorVocabSize = 100_000

// EstimatorTokenizer is an offline tokenizer that needs no vocabulary files.
// CJK characters become one token each; other runs of letters and digits are
// split into chunks of at most four characters; punctuation is one token per
// rune; whitespace separates and is dropped. Each piece maps to a stable
// pseudo id, so equal text always encodes to equal ids.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
	chunkSize int
}

// NewEstimatorTokenizer creates a generic estimator.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &EstimatorTokenizer{
		model:     model,
		maxTokens: maxTokens,
		chunkSize: 4,
	}
}

// WithChunkSize overrides how many ASCII characters form one token.
func (e *EstimatorTokenizer) WithChunkSize(n int) *EstimatorTokenizer {
	if n > 0 {
		e.chunkSize = n
	}
	return e
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	return len(e.pieces(text)), nil
}

func (e *EstimatorTokenizer) Encode(text string) ([]int, error) {
	pieces := e.pieces(text)
	ids := make([]int, len(pieces))
	for i, p := range pieces {
		h := fnv.New32a()
		_, _ = h.Write([]byte(p))
		ids[i] = int(h.Sum32() % estimatorVocabSize)
	}
	return ids, nil
}

func (e *EstimatorTokenizer) Decode(_ []int) (string, error) {
	return "", fmt.Errorf("estimator tokenizer does not support decode")
}

func (e *EstimatorTokenizer) MaxTokens() int {
	return e.maxTokens
}

func (e *EstimatorTokenizer) Name() string {
	return "estimator"
}

func (e *EstimatorTokenizer) pieces(text string) []string {
	var out []string
	run := make([]rune, 0, e.chunkSize)
	flush := func() {
		if len(run) > 0 {
			out = append(out, string(run))
			run = run[:0]
		}
	}

	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]

		switch {
		case isCJK(r):
			flush()
			out = append(out, string(r))
		case unicode.IsSpace(r):
			flush()
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			run = append(run, r)
			if len(run) == e.chunkSize {
				flush()
			}
		default:
			flush()
			out = append(out, string(r))
		}
	}
	flush()
	return out
}

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
