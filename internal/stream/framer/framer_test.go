package framer

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/graph-serde-go/internal/stream/compressor"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

func TestFrameRoundTrip(t *testing.T) {
	fr := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer

	in := &Frame{
		Version:     "1.0.0",
		Flags:       FlagChecksum,
		Compression: compressor.TagZstd,
		RawSize:     1024,
		Checksum:    []byte{1, 2, 3, 4},
		Payload:     []byte("payload"),
	}
	require.NoError(t, fr.WriteFrame(&buf, in))
	require.NoError(t, fr.WriteFrame(&buf, &Frame{Version: "1.0.0"}))
	assert.Equal(t, buf.Len(), in.WireSize+4+2+len("1.0.0"))

	out, err := fr.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.WireSize, out.WireSize)
	out.WireSize = 0
	in.WireSize = 0
	assert.Equal(t, in, out)

	empty, err := fr.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", empty.Version)
	assert.Nil(t, empty.Payload)

	_, err = fr.ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTooLarge(t *testing.T) {
	fr := NewLengthPrefixedFramer(8)
	var buf bytes.Buffer

	err := fr.WriteFrame(&buf, &Frame{Payload: make([]byte, 16)})
	assert.ErrorIs(t, err, merr.ErrFrameTooLarge)
	assert.Zero(t, buf.Len())

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 9)
	_, err = fr.ReadFrame(bytes.NewReader(prefix[:]))
	assert.ErrorIs(t, err, merr.ErrFrameTooLarge)
}

func TestFrameTruncated(t *testing.T) {
	fr := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer
	require.NoError(t, fr.WriteFrame(&buf, &Frame{Payload: []byte("abcdef")}))

	data := buf.Bytes()
	_, err := fr.ReadFrame(bytes.NewReader(data[:len(data)-2]))
	assert.ErrorIs(t, err, merr.ErrIoFailed)

	_, err = fr.ReadFrame(bytes.NewReader(data[:2]))
	assert.ErrorIs(t, err, merr.ErrIoFailed)
}

func TestFrameUnknownFieldsSkipped(t *testing.T) {
	body := protowire.AppendTag(nil, 15, protowire.VarintType)
	body = protowire.AppendVarint(body, 42)
	body = protowire.AppendTag(body, fieldPayload, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte("x"))

	f, err := parseFrame(body)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), f.Payload)
}

func TestFrameCorrupted(t *testing.T) {
	body := protowire.AppendTag(nil, fieldPayload, protowire.BytesType)
	body = protowire.AppendVarint(body, 10)
	_, err := parseFrame(body)
	assert.ErrorIs(t, err, merr.ErrStreamCorrupted)

	body = protowire.AppendTag(nil, fieldCompression, protowire.VarintType)
	body = protowire.AppendVarint(body, 300)
	_, err = parseFrame(body)
	assert.ErrorIs(t, err, merr.ErrStreamCorrupted)

	_, err = NewLengthPrefixedFramer(0).ReadFrame(bytes.NewReader([]byte{0, 0, 0, 1, 0xff}))
	assert.ErrorIs(t, err, merr.ErrStreamCorrupted)
}

func TestWriteFrameNil(t *testing.T) {
	err := NewLengthPrefixedFramer(0).WriteFrame(io.Discard, nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}
