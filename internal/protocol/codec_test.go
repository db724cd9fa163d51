package protocol

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) (Frame, int) {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Encode(w, f))
	require.NoError(t, w.Flush())

	r := bufio.NewReader(&buf)
	got, n, err := Decode(r)
	require.NoError(t, err)
	return got, n
}

func TestRoundTripSimpleString(t *testing.T) {
	got, n := roundTrip(t, NewSimpleString("OK"))
	assert.Equal(t, KindSimpleString, got.Kind)
	assert.Equal(t, "OK", got.Str)
	assert.Equal(t, len("+OK\r\n"), n)
}

func TestRoundTripInteger(t *testing.T) {
	got, _ := roundTrip(t, NewInteger(42))
	assert.Equal(t, int64(42), got.Int)
}

func TestRoundTripBulkString(t *testing.T) {
	got, n := roundTrip(t, NewBulkStringFromText("bar"))
	assert.Equal(t, []byte("bar"), got.Bulk)
	assert.Equal(t, len("$3\r\nbar\r\n"), n)
}

func TestRoundTripNullBulkString(t *testing.T) {
	got, n := roundTrip(t, NewNullBulkString())
	assert.True(t, got.IsNullBulk())
	assert.Equal(t, len("$-1\r\n"), n)
}

func TestRoundTripNestedArray(t *testing.T) {
	inner := NewArray([]Frame{NewBulkStringFromText("f"), NewBulkStringFromText("v")})
	outer := NewArray([]Frame{NewBulkStringFromText("1-1"), inner})
	got, _ := roundTrip(t, outer)
	require.Len(t, got.Items, 2)
	args, ok := got.Items[1].StringArgs()
	require.True(t, ok)
	assert.Equal(t, []string{"f", "v"}, args)
}

func TestDecodeCommandArgv(t *testing.T) {
	raw := "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	r := bufio.NewReader(bytes.NewBufferString(raw))
	f, n, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	argv, ok := f.StringArgs()
	require.True(t, ok)
	assert.Equal(t, []string{"GET", "foo"}, argv)
}

func TestDecodeUnknownTagIsProtocolError(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("@nope\r\n"))
	_, _, err := Decode(r)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestEncodeRawPayloadHasNoTrailingCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Encode(w, NewRawPayload([]byte("REDIS0011"))))
	require.NoError(t, w.Flush())
	assert.Equal(t, "$9\r\nREDIS0011", buf.String())
}

func TestArgvFrameEncodesWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Encode(w, ArgvFrame([]string{"SET", "k", "v"})))
	require.NoError(t, w.Flush())
	assert.Equal(t, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n", buf.String())
}
