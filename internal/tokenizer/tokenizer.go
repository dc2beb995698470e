// Package tokenizer counts and truncates prompt text in model tokens.
//
// Truncation is token-exact: text is encoded, the token slice is cut,
// and the remainder is decoded. Character-based truncation would
// overshoot or undershoot provider limits depending on the content.
package tokenizer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer encodes text into model token IDs and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Count returns the number of tokens in text.
func Count(t Tokenizer, text string) int {
	return len(t.Encode(text))
}

// slack is how far past max Truncate starts looking for a cut. Byte
// tokens that split a rune can merge back into fewer tokens when the
// prefix is re-encoded, so a slightly longer cut may still fit.
const slack = 4

// Truncate cuts text to at most max tokens. It returns the (possibly
// shortened) text and its token count measured by re-encoding the
// result. The cut never splits a UTF-8 sequence; when the token
// boundary at max falls inside a rune, the longest valid prefix that
// still re-encodes within max is used. A non-positive max yields the
// empty string.
func Truncate(t Tokenizer, text string, max int) (string, int) {
	if max <= 0 {
		return "", 0
	}
	tokens := t.Encode(text)
	if len(tokens) <= max {
		return text, len(tokens)
	}
	for cut := min(max+slack, len(tokens)-1); cut > 0; cut-- {
		out := t.Decode(tokens[:cut])
		if !utf8.ValidString(out) {
			continue
		}
		if n := len(t.Encode(out)); n <= max {
			return out, n
		}
	}
	return "", 0
}

var loaderOnce sync.Once

// Tiktoken wraps a BPE encoding such as cl100k_base. The BPE ranks are
// embedded in the binary, so no network access is needed.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode tokenizes text. Special-token markers in the text are treated
// as ordinary characters.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.EncodeOrdinary(text)
}

// Decode turns token IDs back into text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
