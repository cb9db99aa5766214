package streamtype

import (
	"testing"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioRoundTrip(t *testing.T) {
	samples := make([]byte, 480*1*4) // 480 samples, mono, F32
	for i := range samples {
		samples[i] = byte(i % 7)
	}

	rd, err := NewAudio(samples, 48000, 1, SampleF32, map[string]string{"src": "mic"})
	require.NoError(t, err)

	proto, err := ToProto(rd)
	require.NoError(t, err)
	require.NotNil(t, proto.Audio)

	back, err := ToRuntime(proto)
	require.NoError(t, err)

	assert.Equal(t, TypeAudio, back.DataType())
	count, err := back.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 480, count)

	backBytes, err := back.AudioBytes()
	require.NoError(t, err)
	assert.Equal(t, samples, backBytes)

	sr, ch, ns, format, err := back.AudioMeta()
	require.NoError(t, err)
	assert.Equal(t, 48000, sr)
	assert.Equal(t, 1, ch)
	assert.Equal(t, 480, ns)
	assert.Equal(t, SampleF32, format)
}

func TestAudioInvariantViolation(t *testing.T) {
	_, err := NewAudio([]byte{1, 2, 3}, 48000, 2, SampleF32, nil)
	require.Error(t, err)
	assert.True(t, corepipeerr.Is(err, corepipeerr.KindValidation))
}

func TestVideoInvariantYUV420P(t *testing.T) {
	w, h := 4, 4
	expected := w*h + (w*h)/2
	bytes := make([]byte, expected)
	rd, err := NewVideo(bytes, w, h, PixelYUV420P, 0, 0, nil)
	require.NoError(t, err)

	_, err = NewVideo(bytes[:expected-1], w, h, PixelYUV420P, 0, 0, nil)
	require.Error(t, err)

	width, height, format, _, _, err := rd.VideoMeta()
	require.NoError(t, err)
	assert.Equal(t, w, width)
	assert.Equal(t, h, height)
	assert.Equal(t, PixelYUV420P, format)
}

func TestTensorInvariant(t *testing.T) {
	shape := []int{2, 3}
	bytes := make([]byte, 2*3*4) // F32
	rd, err := NewTensor(bytes, shape, DTypeF32, "", nil)
	require.NoError(t, err)

	count, err := rd.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	_, err = NewTensor(bytes[:len(bytes)-1], shape, DTypeF32, "", nil)
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	rd, err := NewJSON(`{"operation":"add","operands":[10,20]}`, "", nil)
	require.NoError(t, err)

	count, err := rd.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count) // two top-level fields

	proto, err := ToProto(rd)
	require.NoError(t, err)
	require.NotNil(t, proto.JSON)

	_, err = NewJSON(`not json`, "", nil)
	require.Error(t, err)
}

func TestToRuntimeRejectsNoVariantSet(t *testing.T) {
	_, err := ToRuntime(&DataBuffer{})
	require.Error(t, err)
	assert.True(t, corepipeerr.Is(err, corepipeerr.KindValidation))
}

func TestToRuntimeRejectsMultipleVariantsSet(t *testing.T) {
	_, err := ToRuntime(&DataBuffer{
		JSON: &JSONBuffer{Text: `{"a":1}`},
		Text: &TextBuffer{Bytes: []byte("hello"), Encoding: "utf-8"},
	})
	require.Error(t, err)
	assert.True(t, corepipeerr.Is(err, corepipeerr.KindValidation))
}

func TestTextRequiresValidUTF8(t *testing.T) {
	_, err := NewText([]byte{0xff, 0xfe}, "utf-8", "en", nil)
	require.Error(t, err)

	rd, err := NewText([]byte("hello"), "utf-8", "en", nil)
	require.NoError(t, err)
	count, err := rd.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestCloneSharesBytesNotCopies(t *testing.T) {
	rd := NewBinary([]byte("payload"), "application/octet-stream", nil)
	clone := rd.Clone()

	b1, _ := rd.BinaryBytes()
	b2, _ := clone.BinaryBytes()
	assert.Equal(t, &b1[0], &b2[0], "clone must alias the same backing array")
}

