// Package versionid implements the content-addressed identifier used for
// every edit in an article's chain.
package versionid

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Size is the number of bytes retained from the SHA-256 digest.
const Size = 16

// VersionId is the first 16 bytes of SHA-256 over the exact UTF-8 bytes of
// the diff it identifies. Equality is byte-equality; rendering is
// lowercase hex of all 16 bytes.
type VersionId [Size]byte

// Default is the VersionId of the empty diff, the canonical predecessor of
// the first edit of any article.
var Default = New("")

// New computes the VersionId of diff.
func New(diff string) VersionId {
	sum := sha256.Sum256([]byte(diff))
	var id VersionId
	copy(id[:], sum[:Size])
	return id
}

// Parse decodes a 32-character lowercase hex string into a VersionId.
func Parse(s string) (VersionId, error) {
	var id VersionId
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("versionid: invalid hex: %w", err)
	}
	if len(b) != Size {
		return id, fmt.Errorf("versionid: expected %d bytes, got %d", Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex rendering of id.
func (id VersionId) String() string {
	return hex.EncodeToString(id[:])
}

// Equal reports whether id and other identify the same diff.
func (id VersionId) Equal(other VersionId) bool {
	return id == other
}

// IsZero reports whether id is the zero value (distinct from Default,
// which is New("")).
func (id VersionId) IsZero() bool {
	return id == VersionId{}
}

// MarshalJSON renders id as its hex string, matching the wire form used by
// ActivityPub object fields that reference a version.
func (id VersionId) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses id from its hex string form.
func (id *VersionId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer so VersionId can be stored as a column.
func (id VersionId) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements sql.Scanner for reading VersionId columns back out.
func (id *VersionId) Scan(value interface{}) error {
	if value == nil {
		*id = VersionId{}
		return nil
	}
	switch v := value.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	default:
		return fmt.Errorf("versionid: cannot scan type %T", value)
	}
}
