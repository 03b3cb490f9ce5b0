// Package targeting maps context identifiers onto stable rollout percentages.
//
// The mapping is shared with other feature management implementations: SHA-256 of the
// identifier, the first four digest bytes read as a little-endian uint32, scaled to [0, 100].
// Changing any step reassigns every existing rollout.
package targeting

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// ContextID joins identifier fields with the newline separator used for rollout buckets.
func ContextID(fields ...string) string {
	return strings.Join(fields, "\n")
}

// ComputePercentage returns the stable percentage for contextID.
func ComputePercentage(contextID string) float64 {
	sum := sha256.Sum256([]byte(contextID))
	marker := binary.LittleEndian.Uint32(sum[:4])
	return float64(marker) / float64(math.MaxUint32) * 100
}

// IsTargeted reports whether contextID falls inside rolloutPercentage.
func IsTargeted(contextID string, rolloutPercentage float64) bool {
	if rolloutPercentage == 100 {
		return true
	}
	return ComputePercentage(contextID) < rolloutPercentage
}
