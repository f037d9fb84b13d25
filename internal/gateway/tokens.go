package gateway

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/sokitar/agentic-survey-research-team/internal/config"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text. It prefers the
// cl100k_base tokenizer; if that encoding cannot be loaded it falls back to
// the fixed chars-per-token ratio. Results are always flagged as estimated
// by the caller; only the provider's own counts are authoritative.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Debug().Err(err).Msg("gateway: tokenizer unavailable, using char ratio estimate")
			return
		}
		encoding = enc
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}

	n := len(text) / config.TokenEstimateRatio
	if n < 1 {
		n = 1
	}
	return n
}
