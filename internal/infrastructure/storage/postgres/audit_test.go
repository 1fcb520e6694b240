package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditEncodeSmallStaysPlain(t *testing.T) {
	l, err := NewAuditLog(nil, 64)
	require.NoError(t, err)

	changes := []byte(`{"name":{"old":"A","new":"B"}}`)
	plain, compressed, algo := l.encode(changes)

	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.JSONEq(t, string(changes), string(plain))
}

func TestAuditEncodeLargeRoundTrip(t *testing.T) {
	l, err := NewAuditLog(nil, 64)
	require.NoError(t, err)

	changes := []byte(`{"note":{"old":null,"new":"` + strings.Repeat("x", 4096) + `"}}`)
	plain, compressed, algo := l.encode(changes)

	require.Equal(t, CompressionZstd, algo)
	assert.Nil(t, plain)
	assert.Less(t, len(compressed), len(changes))

	decoded, err := l.decode(&auditRow{ChangesCompressed: compressed, CompressionAlgo: algo})
	require.NoError(t, err)
	assert.JSONEq(t, string(changes), string(decoded))
}

func TestAuditDecodePlain(t *testing.T) {
	l, err := NewAuditLog(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompressThreshold, l.compressThreshold)

	decoded, err := l.decode(&auditRow{Changes: []byte(`{"a":1}`), CompressionAlgo: CompressionNone})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(decoded))
}

func TestAuditDecodeCorrupt(t *testing.T) {
	l, err := NewAuditLog(nil, 0)
	require.NoError(t, err)

	_, err = l.decode(&auditRow{ChangesCompressed: []byte("not zstd"), CompressionAlgo: CompressionZstd})
	assert.Error(t, err)
}
