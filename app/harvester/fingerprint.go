package harvester

import (
	"crypto/sha1"
	"encoding/hex"
)

// Fingerprint derives the stable identity of a harvest unit from its
// detail URL. The same URL always yields the same fingerprint, which is
// what makes repeated harvests idempotent.
func Fingerprint(detailURL string) string {
	sum := sha1.Sum([]byte(detailURL))
	return hex.EncodeToString(sum[:])
}
