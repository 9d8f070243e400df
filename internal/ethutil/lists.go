package ethutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func splitList(raw string) []string {
	return strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\n', '\r', '\t':
			return true
		default:
			return false
		}
	})
}

// ParseTokenIDList parses base-10 position ids from a single string.
//
// Supported separators: commas, semicolons and whitespace. Order and
// duplicates are preserved.
//
// Returns (nil, nil) if raw is empty/whitespace.
func ParseTokenIDList(raw string) ([]uint64, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q in %q", part, raw)
		}
		out = append(out, id)
	}
	return out, nil
}

// ParseHexBlobList parses 0x-prefixed hex blobs, e.g. Pyth price update data.
//
// Returns (nil, nil) if raw is empty/whitespace.
func ParseHexBlobList(raw string) ([][]byte, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, len(parts))
	for _, part := range parts {
		b, err := hexutil.Decode(part)
		if err != nil {
			return nil, fmt.Errorf("invalid hex blob %q: %w", abbreviate(part), err)
		}
		out = append(out, b)
	}
	return out, nil
}

func abbreviate(s string) string {
	if len(s) <= 18 {
		return s
	}
	return s[:10] + "..." + s[len(s)-6:]
}
