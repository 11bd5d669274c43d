package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the cache and dedup identity for a request: a SHA-256
// hex digest over the target URL and the sorted, de-duplicated category set.
// Requests whose category sets are permutations of each other fingerprint
// identically.
func Fingerprint(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.URL))
	for _, c := range NormalizeCategories(req.Categories) {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}
