package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhitespaceTokenizer(t *testing.T) {
	tok := getTokenizer(false)

	assert.Equal(t, 0, tok.CountTokens(""))
	assert.Equal(t, 0, tok.CountTokens("  \n\t "))
	assert.Equal(t, 3, tok.CountTokens("fn main() {}"))
}
