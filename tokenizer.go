package main

import (
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in the final bundle.
type Tokenizer interface {
	CountTokens(text string) int
}

// whitespaceTokenizer is the cheap default: whitespace-separated words.
type whitespaceTokenizer struct{}

func (whitespaceTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// tiktokenWrapper counts GPT tokens with the p50k_base encoding.
type tiktokenWrapper struct {
	ttk *tiktoken.Tiktoken
}

func (w *tiktokenWrapper) CountTokens(text string) int {
	if w.ttk == nil {
		return 0
	}
	return len(w.ttk.Encode(text, nil, nil))
}

// getTokenizer picks the tokenizer for the run. With --gpt4-tokens a
// tiktoken initialization failure degrades to the whitespace counter with a
// warning rather than failing the run.
func getTokenizer(gpt4 bool) Tokenizer {
	if !gpt4 {
		return whitespaceTokenizer{}
	}
	ttk, err := tiktoken.GetEncoding("p50k_base")
	if err != nil {
		logger.Warn("could not initialize GPT tokenizer, falling back to word count",
			"err", fmt.Errorf("p50k_base: %w", err))
		return whitespaceTokenizer{}
	}
	return &tiktokenWrapper{ttk: ttk}
}
