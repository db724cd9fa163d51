package rdbsnap

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	expiry := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	entries := []Entry{
		{Key: "foo", Value: "bar"},
		{Key: "ttl", Value: "soon", ExpiresAt: &expiry},
	}

	raw, err := Encode(entries)
	require.NoError(t, err)

	require.NoError(t, VerifyChecksum(raw))

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "foo", got[0].Key)
	assert.Equal(t, "bar", got[0].Value)
	assert.Nil(t, got[0].ExpiresAt)
	assert.Equal(t, "ttl", got[1].Key)
	require.NotNil(t, got[1].ExpiresAt)
	assert.Equal(t, expiry.UnixMilli(), got[1].ExpiresAt.UnixMilli())
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	entries, err := Load("/nonexistent/dir/dump.rdb")
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestReadStringSpecialEncodings(t *testing.T) {
	// 0xC0 = kind 11, subtype 0 -> inline int8
	raw := []byte{0xC0, 0x7B} // 123
	r := bufio.NewReader(newByteReader(raw))
	s, err := readString(r)
	require.NoError(t, err)
	assert.Equal(t, "123", s)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte("NOTAREDISFILE"))
	require.Error(t, err)
}
