package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// PageKey is the generation key of a page.
func PageKey(page uint64) string {
	return "page:" + strconv.FormatUint(page, 10)
}

// VariantHash returns a short deterministic hash of render options, so that
// renders under different options (language, skin, user preferences) are cached
// apart. Order of the map does not matter; an empty map hashes to "canonical".
func VariantHash(opts map[string]string) string {
	if len(opts) == 0 {
		return "canonical"
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(opts[k]))
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8]) // first 16 hex chars
}
