package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// checkMacField is excluded from its own computation.
const checkMacField = "CheckMacValue"

// Sign computes the gateway checksum: parameters sorted by key, joined
// as key=value with "&", wrapped in HashKey/HashIV, passed through the
// gateway's legacy URL encoding, SHA-256 hashed, upper-cased hex.
// The encoding is a wire contract and must not be normalized.
func Sign(params map[string]string, hashKey, hashIV string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == checkMacField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("HashKey=")
	b.WriteString(hashKey)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	b.WriteString("&HashIV=")
	b.WriteString(hashIV)

	sum := sha256.Sum256([]byte(legacyURLEncode(b.String())))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify checks the CheckMacValue delivered with a callback against the
// same computation over the remaining parameters.
func Verify(params map[string]string, hashKey, hashIV string) bool {
	got := params[checkMacField]
	return got != "" && got == Sign(params, hashKey, hashIV)
}

// legacyURLEncode reproduces the .NET UrlEncode flavor the gateway
// hashes over: lowercase percent escapes, space as "+", the characters
// - _ . ! * ( ) left bare, and "~" escaped.
func legacyURLEncode(s string) string {
	e := strings.ToLower(url.QueryEscape(s))
	r := strings.NewReplacer(
		"%2d", "-",
		"%5f", "_",
		"%2e", ".",
		"%21", "!",
		"%2a", "*",
		"%28", "(",
		"%29", ")",
		"~", "%7e",
	)
	return r.Replace(e)
}
