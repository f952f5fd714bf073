package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetRoundTripNative(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOffset(&buf, Get, 0xdeadbeef, false))

	msg, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.Equal(t, Get, msg.Tag)
	require.Equal(t, uint64(0xdeadbeef), msg.Offset)
}

func TestOffsetRoundTripHeterogeneous(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOffset(&buf, PutOffset, 0x1122334455667788, true))

	msg, err := ReadMessage(&buf, true)
	require.NoError(t, err)
	require.Equal(t, PutOffset, msg.Tag)
	require.Equal(t, uint64(0x1122334455667788), msg.Offset)
}

func TestHeterogeneousMismatchProducesWrongValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOffset(&buf, Get, 1, true))

	msg, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.NotEqual(t, uint64(1), msg.Offset, "decoding with the wrong endianness must not silently recover the value")
}

func TestDataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0xab}, 4096)
	require.NoError(t, WriteData(&buf, PutData, payload))

	msg, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.Equal(t, PutData, msg.Tag)
	require.Equal(t, payload, msg.Payload)
}

func TestTerminateRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTerminate(&buf))

	msg, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.Equal(t, Terminate, msg.Tag)
}

func TestWriteOffsetRejectsWrongTag(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteOffset(&buf, PutData, 1, false))
}

func TestWriteDataRejectsWrongTag(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteData(&buf, Get, []byte{1}))
}

func TestReadMessageRejectsMalformedTag(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0, 0, 0, 0})
	_, err := ReadMessage(&buf, false)
	require.Error(t, err)
}

func TestSequenceOfMessagesOnSharedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOffset(&buf, Get, 42, false))
	require.NoError(t, WriteData(&buf, Response, bytes.Repeat([]byte{1}, 16)))
	require.NoError(t, WriteTerminate(&buf))

	m1, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.Equal(t, Get, m1.Tag)

	m2, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.Equal(t, Response, m2.Tag)
	require.Len(t, m2.Payload, 16)

	m3, err := ReadMessage(&buf, false)
	require.NoError(t, err)
	require.Equal(t, Terminate, m3.Tag)
}
