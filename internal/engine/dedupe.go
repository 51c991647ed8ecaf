package engine

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"ordercast/internal/types"
)

// keySeparator delimits the hashed fields so that ("ab","c") and ("a","bc")
// can never collide.
const keySeparator = "\x1f"

// DedupeKey computes the stable, fixed-length dedupe key for one
// notification intent. The key is a hex-encoded blake2b-256 digest over
// (tenant, rule, entity, channel, source); the same inputs always produce
// the same 64-character key, which backs the uniqueness constraint on
// notifications.dedupe_key.
func DedupeKey(tenantID, ruleID, entityID string, channel types.Channel, source string) string {
	h, _ := blake2b.New256(nil)
	for i, part := range []string{tenantID, ruleID, entityID, string(channel), source} {
		if i > 0 {
			h.Write([]byte(keySeparator))
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
