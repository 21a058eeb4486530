package versionid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsEmptyDiffHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb924", Default.String())
}

func TestNewKnownVector(t *testing.T) {
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015", New("test").String())
}

func TestNewIsDeterministic(t *testing.T) {
	a := New("hello world")
	b := New("hello world")
	assert.True(t, a.Equal(b))
}

func TestNewDiffersByInput(t *testing.T) {
	a := New("hello")
	b := New("world")
	assert.False(t, a.Equal(b))
}

func TestParseRoundTrip(t *testing.T) {
	id := New("round trip me")
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestParseRejectsBadLength(t *testing.T) {
	_, err := Parse("deadbeef")
	assert.Error(t, err)
}

func TestParseRejectsNonHex(t *testing.T) {
	_, err := Parse("not-hex-not-hex-not-hex-not-hex")
	assert.Error(t, err)
}

func TestIsZero(t *testing.T) {
	var zero VersionId
	assert.True(t, zero.IsZero())
	assert.False(t, Default.IsZero())
}

func TestJSONRoundTrip(t *testing.T) {
	id := New("json payload")
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var out VersionId
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, id.Equal(out))
}

func TestValueAndScan(t *testing.T) {
	id := New("scan me")
	v, err := id.Value()
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)
	assert.Equal(t, id.String(), s)

	var out VersionId
	require.NoError(t, out.Scan(s))
	assert.True(t, id.Equal(out))

	require.NoError(t, out.Scan([]byte(s)))
	assert.True(t, id.Equal(out))

	var nilScan VersionId
	require.NoError(t, nilScan.Scan(nil))
	assert.True(t, nilScan.IsZero())

	err = out.Scan(42)
	assert.Error(t, err)
}
