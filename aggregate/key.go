package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key derives the memo key for req. Requests that differ in any channel,
// keyword, order or limit get different keys.
func Key(req Request) string {
	canonical := struct {
		Channels   []string `json:"channels"`
		MaxResults int      `json:"max_results"`
		Keywords   []string `json:"keywords"`
	}{
		Channels:   nonNil(req.Channels),
		MaxResults: req.MaxResults,
		Keywords:   nonNil(req.Keywords),
	}
	// Marshalling strings and ints cannot fail.
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
