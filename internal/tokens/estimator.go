// Package tokens estimates prompt sizes so the chat layer can report how
// much of the context window a tenant's rendered catalog consumes.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// Estimate returns the token count of text under the cl100k_base
// encoding, which is close enough for the OpenAI-compatible backends this
// router targets. If the tokenizer cannot be initialized it falls back to
// a bytes/4 approximation rather than failing.
func Estimate(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})

	if codec == nil {
		return len(text) / 4
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}
