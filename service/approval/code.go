package approval

import (
	"crypto/rand"
	"fmt"
)

// CodeAlphabet excludes visually ambiguous symbols (0/O and 1/I/L) so a code
// read over voice or chat cannot be mistranscribed.
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength yields roughly 30 bits of entropy. That is deliberately weak
// against offline brute force and deliberately sufficient here: guesses can
// only be submitted online through Validate, and the expiry horizon bounds
// the attack window.
const CodeLength = 6

// NewCode draws a fresh approval code from crypto/rand. Bytes outside the
// largest multiple of the alphabet size are rejected so every symbol is
// equally likely.
func NewCode() (string, error) {
	const limit = 256 - 256%len(CodeAlphabet)
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("approval: failed to generate code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
