package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainDesign separates design hashes from any other hash of the same bytes.
const DomainDesign = "survey/design/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DesignHash computes the content address of a survey tree. Trees that
// differ only in key order or Unicode normalization hash the same.
func DesignHash(survey Component) (string, error) {
	canonical, err := MarshalCanonical(survey)
	if err != nil {
		return "", fmt.Errorf("DesignHash: %w", err)
	}
	return hashWithDomain(DomainDesign, canonical), nil
}
