package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	TableHash   Hash
	ParamsHash  Hash
	Fingerprint Hash
)

// Constructors
func NewTableHash(data []byte) TableHash   { return TableHash(NewHash(data)) }
func NewParamsHash(data []byte) ParamsHash { return ParamsHash(NewHash(data)) }

// String conversions
func (h TableHash) String() string   { return Hash(h).String() }
func (h ParamsHash) String() string  { return Hash(h).String() }
func (f Fingerprint) String() string { return Hash(f).String() }

// ComputeParamsHash hashes a set of named parameters independent of map order.
func ComputeParamsHash(params map[string]string) ParamsHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(params[key])
		data.WriteString(";")
	}

	return NewParamsHash([]byte(data.String()))
}

// ComputeFingerprint combines a session generation, a table content hash and an
// operation's parameters into a single cache/replay key. Any input change
// yields a different fingerprint.
func ComputeFingerprint(generation uint64, table TableHash, operation string, params ParamsHash) Fingerprint {
	var data strings.Builder
	data.WriteString(strconv.FormatUint(generation, 10))
	data.WriteString("|")
	data.WriteString(table.String())
	data.WriteString("|")
	data.WriteString(operation)
	data.WriteString("|")
	data.WriteString(params.String())
	return Fingerprint(NewHash([]byte(data.String())))
}

// HashFloatRow writes a float row into a builder in a stable textual form.
// Shared by table hashing so the same values always hash identically.
func HashFloatRow(b *strings.Builder, row []float64) {
	for _, v := range row {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteString(",")
	}
	b.WriteString("\n")
}

// FormatHashPreview returns a short prefix for log lines.
func FormatHashPreview(h Hash) string {
	s := h.String()
	if len(s) <= 12 {
		return s
	}
	return fmt.Sprintf("%s…", s[:12])
}
