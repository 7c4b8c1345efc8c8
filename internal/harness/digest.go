package harness

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTrace prefixes trace digests. The version suffix changes if the
// snapshot format does.
const DomainTrace = "streamtest/trace/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TraceDigest returns a content hash of the result's canonical snapshot.
// Two runs of the same scenario produce the same digest exactly when
// their golden snapshots are byte-identical.
func TraceDigest(result *Result) (string, error) {
	canonical, err := MarshalSnapshot(result)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}
