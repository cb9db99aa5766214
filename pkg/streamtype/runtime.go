package streamtype

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// RuntimeData is the in-memory mirror of DataBuffer. Byte payloads are held
// through a reference-counted byteBox so Clone never copies; JSON
// is held as a parsed value rather than raw text.
type RuntimeData struct {
	kind   DataTypeHint
	audio  *runtimeAudio
	video  *runtimeVideo
	tensor *runtimeTensor
	json   *runtimeJSON
	text   *runtimeText
	binary *runtimeBinary
}

type runtimeAudio struct {
	box        *byteBox
	sampleRate int
	channels   int
	format     SampleFormat
	numSamples int
	metadata   map[string]string
}

type runtimeVideo struct {
	box         *byteBox
	width       int
	height      int
	format      PixelFormat
	frameNumber uint64
	timestampUs int64
	metadata    map[string]string
}

type runtimeTensor struct {
	box      *byteBox
	shape    []int
	dtype    TensorDType
	layout   string
	metadata map[string]string
}

type runtimeJSON struct {
	value     any
	schemaTag string
	metadata  map[string]string
}

type runtimeText struct {
	box      *byteBox
	encoding string
	language string
	metadata map[string]string
}

type runtimeBinary struct {
	box      *byteBox
	mimeHint string
	metadata map[string]string
}

// DataType returns the payload's discriminator.
func (r *RuntimeData) DataType() DataTypeHint {
	return r.kind
}

// Clone shares the underlying byte block (incrementing its reference
// count) rather than copying it; JSON values are plain Go values and are
// shallow-copied by value, matching their immutable-after-handoff contract.
func (r *RuntimeData) Clone() *RuntimeData {
	clone := &RuntimeData{kind: r.kind}
	switch r.kind {
	case TypeAudio:
		a := *r.audio
		a.box = r.audio.box.Clone()
		clone.audio = &a
	case TypeVideo:
		v := *r.video
		v.box = r.video.box.Clone()
		clone.video = &v
	case TypeTensor:
		t := *r.tensor
		t.box = r.tensor.box.Clone()
		clone.tensor = &t
	case TypeJSON:
		j := *r.json
		clone.json = &j
	case TypeText:
		t := *r.text
		t.box = r.text.box.Clone()
		clone.text = &t
	case TypeBinary:
		b := *r.binary
		b.box = r.binary.box.Clone()
		clone.binary = &b
	}
	return clone
}

// Release drops this handle's reference to its byte block. Safe to call
// more than once is not guaranteed; callers own exactly one Release per
// Clone/New.
func (r *RuntimeData) Release() {
	switch r.kind {
	case TypeAudio:
		r.audio.box.Release()
	case TypeVideo:
		r.video.box.Release()
	case TypeTensor:
		r.tensor.box.Release()
	case TypeText:
		r.text.box.Release()
	case TypeBinary:
		r.binary.box.Release()
	}
}

// ItemCount is samples for audio, 1 for video, prod(shape) for tensor,
// character count for text, length for binary, element/field count for a
// JSON array/object else 1.
func (r *RuntimeData) ItemCount() (int, error) {
	switch r.kind {
	case TypeAudio:
		return r.audio.numSamples, nil
	case TypeVideo:
		return 1, nil
	case TypeTensor:
		return ProdShape(r.tensor.shape)
	case TypeText:
		return utf8.RuneCountInString(string(r.text.box.Bytes())), nil
	case TypeBinary:
		return len(r.binary.box.Bytes()), nil
	case TypeJSON:
		switch v := r.json.value.(type) {
		case []any:
			return len(v), nil
		case map[string]any:
			return len(v), nil
		default:
			return 1, nil
		}
	default:
		return 0, corepipeerr.New(corepipeerr.KindInternal, fmt.Sprintf("unhandled data type %q in ItemCount", r.kind))
	}
}

// SizeBytes is the payload's footprint, used by the metrics layer.
func (r *RuntimeData) SizeBytes() int {
	switch r.kind {
	case TypeAudio:
		return len(r.audio.box.Bytes())
	case TypeVideo:
		return len(r.video.box.Bytes())
	case TypeTensor:
		return len(r.tensor.box.Bytes())
	case TypeText:
		return len(r.text.box.Bytes())
	case TypeBinary:
		return len(r.binary.box.Bytes())
	case TypeJSON:
		encoded, err := json.Marshal(r.json.value)
		if err != nil {
			return 0
		}
		return len(encoded)
	default:
		return 0
	}
}

// AudioBytes returns the aliased sample bytes; callers must not mutate them
//.
func (r *RuntimeData) AudioBytes() ([]byte, error) {
	if r.kind != TypeAudio {
		return nil, fmt.Errorf("data is %s, not AUDIO", r.kind)
	}
	return r.audio.box.Bytes(), nil
}

func (r *RuntimeData) AudioMeta() (sampleRate, channels, numSamples int, format SampleFormat, err error) {
	if r.kind != TypeAudio {
		return 0, 0, 0, "", fmt.Errorf("data is %s, not AUDIO", r.kind)
	}
	return r.audio.sampleRate, r.audio.channels, r.audio.numSamples, r.audio.format, nil
}

func (r *RuntimeData) VideoBytes() ([]byte, error) {
	if r.kind != TypeVideo {
		return nil, fmt.Errorf("data is %s, not VIDEO", r.kind)
	}
	return r.video.box.Bytes(), nil
}

func (r *RuntimeData) VideoMeta() (width, height int, format PixelFormat, frameNumber uint64, timestampUs int64, err error) {
	if r.kind != TypeVideo {
		return 0, 0, "", 0, 0, fmt.Errorf("data is %s, not VIDEO", r.kind)
	}
	return r.video.width, r.video.height, r.video.format, r.video.frameNumber, r.video.timestampUs, nil
}

func (r *RuntimeData) TensorBytes() ([]byte, error) {
	if r.kind != TypeTensor {
		return nil, fmt.Errorf("data is %s, not TENSOR", r.kind)
	}
	return r.tensor.box.Bytes(), nil
}

func (r *RuntimeData) TensorMeta() (shape []int, dtype TensorDType, layout string, err error) {
	if r.kind != TypeTensor {
		return nil, "", "", fmt.Errorf("data is %s, not TENSOR", r.kind)
	}
	return r.tensor.shape, r.tensor.dtype, r.tensor.layout, nil
}

func (r *RuntimeData) JSONValue() (any, error) {
	if r.kind != TypeJSON {
		return nil, fmt.Errorf("data is %s, not JSON", r.kind)
	}
	return r.json.value, nil
}

func (r *RuntimeData) TextBytes() ([]byte, error) {
	if r.kind != TypeText {
		return nil, fmt.Errorf("data is %s, not TEXT", r.kind)
	}
	return r.text.box.Bytes(), nil
}

func (r *RuntimeData) BinaryBytes() ([]byte, error) {
	if r.kind != TypeBinary {
		return nil, fmt.Errorf("data is %s, not BINARY", r.kind)
	}
	return r.binary.box.Bytes(), nil
}

// NewAudio constructs validated audio RuntimeData, taking ownership of bytes.
func NewAudio(bytes []byte, sampleRate, channels int, format SampleFormat, metadata map[string]string) (*RuntimeData, error) {
	bps, err := format.BytesPerSample()
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid audio sample format")
	}
	if channels <= 0 {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "audio channels must be positive")
	}
	frameSize := channels * bps
	if frameSize == 0 || len(bytes)%frameSize != 0 {
		return nil, corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("audio byte length %d is not a multiple of frame size %d", len(bytes), frameSize))
	}
	numSamples := len(bytes) / frameSize
	return &RuntimeData{
		kind: TypeAudio,
		audio: &runtimeAudio{
			box:        newByteBox(bytes),
			sampleRate: sampleRate,
			channels:   channels,
			format:     format,
			numSamples: numSamples,
			metadata:   metadata,
		},
	}, nil
}

// NewVideo constructs validated video RuntimeData, taking ownership of bytes.
func NewVideo(bytes []byte, width, height int, format PixelFormat, frameNumber uint64, timestampUs int64, metadata map[string]string) (*RuntimeData, error) {
	expected, err := PackedSize(width, height, format)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid video frame shape")
	}
	if len(bytes) != expected {
		return nil, corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("video byte length %d does not match expected %d for %dx%d %s", len(bytes), expected, width, height, format)).
			WithContext("expected_bytes", fmt.Sprintf("%d", expected)).
			WithContext("actual_bytes", fmt.Sprintf("%d", len(bytes)))
	}
	return &RuntimeData{
		kind: TypeVideo,
		video: &runtimeVideo{
			box:         newByteBox(bytes),
			width:       width,
			height:      height,
			format:      format,
			frameNumber: frameNumber,
			timestampUs: timestampUs,
			metadata:    metadata,
		},
	}, nil
}

// NewTensor constructs validated tensor RuntimeData, taking ownership of bytes.
func NewTensor(bytes []byte, shape []int, dtype TensorDType, layout string, metadata map[string]string) (*RuntimeData, error) {
	elemSize, err := dtype.SizeOf()
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid tensor dtype")
	}
	count, err := ProdShape(shape)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid tensor shape")
	}
	expected := count * elemSize
	if len(bytes) != expected {
		return nil, corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("tensor byte length %d does not match expected %d for shape %v dtype %s", len(bytes), expected, shape, dtype)).
			WithContext("expected_bytes", fmt.Sprintf("%d", expected)).
			WithContext("actual_bytes", fmt.Sprintf("%d", len(bytes)))
	}
	return &RuntimeData{
		kind: TypeTensor,
		tensor: &runtimeTensor{
			box:      newByteBox(bytes),
			shape:    append([]int{}, shape...),
			dtype:    dtype,
			layout:   layout,
			metadata: metadata,
		},
	}, nil
}

// NewJSON parses text as JSON and constructs RuntimeData.
func NewJSON(text string, schemaTag string, metadata map[string]string) (*RuntimeData, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "payload is not valid JSON")
	}
	return &RuntimeData{
		kind: TypeJSON,
		json: &runtimeJSON{value: value, schemaTag: schemaTag, metadata: metadata},
	}, nil
}

// NewJSONValue constructs JSON RuntimeData directly from an already-decoded
// Go value, used by nodes that produce JSON internally (e.g. the
// calculator reference node) without a serialize/parse round trip.
func NewJSONValue(value any, schemaTag string, metadata map[string]string) *RuntimeData {
	return &RuntimeData{kind: TypeJSON, json: &runtimeJSON{value: value, schemaTag: schemaTag, metadata: metadata}}
}

// NewText constructs validated text RuntimeData, taking ownership of bytes.
func NewText(bytes []byte, encoding string, language string, metadata map[string]string) (*RuntimeData, error) {
	if !utf8.Valid(bytes) {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "text payload is not valid UTF-8")
	}
	return &RuntimeData{
		kind: TypeText,
		text: &runtimeText{box: newByteBox(bytes), encoding: encoding, language: language, metadata: metadata},
	}, nil
}

// NewBinary constructs binary RuntimeData, taking ownership of bytes.
func NewBinary(bytes []byte, mimeHint string, metadata map[string]string) *RuntimeData {
	return &RuntimeData{kind: TypeBinary, binary: &runtimeBinary{box: newByteBox(bytes), mimeHint: mimeHint, metadata: metadata}}
}

// ToRuntime converts a wire DataBuffer to RuntimeData, validating every
// payload invariant. Byte slices are moved, not copied: the wire
// struct should not be reused by the caller afterward.
func ToRuntime(b *DataBuffer) (*RuntimeData, error) {
	if b == nil {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "data buffer is nil")
	}
	switch n := b.setVariants(); {
	case n == 0:
		return nil, corepipeerr.New(corepipeerr.KindValidation, "data buffer has no variant set")
	case n > 1:
		return nil, corepipeerr.New(corepipeerr.KindValidation, "data buffer must set exactly one of audio, video, tensor, json, text, binary, got multiple")
	}
	if b.Audio != nil {
		return NewAudio(b.Audio.Bytes, b.Audio.SampleRate, b.Audio.Channels, b.Audio.Format, b.Audio.Metadata)
	}
	if b.Video != nil {
		return NewVideo(b.Video.Bytes, b.Video.Width, b.Video.Height, b.Video.Format, b.Video.FrameNumber, b.Video.TimestampUs, b.Video.Metadata)
	}
	if b.Tensor != nil {
		return NewTensor(b.Tensor.Bytes, b.Tensor.Shape, b.Tensor.DType, b.Tensor.Layout, b.Tensor.Metadata)
	}
	if b.JSON != nil {
		return NewJSON(b.JSON.Text, b.JSON.SchemaTag, b.JSON.Metadata)
	}
	if b.Text != nil {
		return NewText(b.Text.Bytes, b.Text.Encoding, b.Text.Language, b.Text.Metadata)
	}
	if b.Binary != nil {
		return NewBinary(b.Binary.Bytes, b.Binary.MimeHint, b.Binary.Metadata), nil
	}
	return nil, corepipeerr.New(corepipeerr.KindInternal, "unreachable: no variant matched after setVariants check")
}

// ToProto converts RuntimeData back to its wire form, preserving the
// discriminator and moving bytes rather than copying them.
func ToProto(r *RuntimeData) (*DataBuffer, error) {
	if r == nil {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "runtime data is nil")
	}
	switch r.kind {
	case TypeAudio:
		return &DataBuffer{Audio: &AudioBuffer{
			Bytes: r.audio.box.Bytes(), SampleRate: r.audio.sampleRate, Channels: r.audio.channels,
			Format: r.audio.format, NumSamples: r.audio.numSamples, Metadata: r.audio.metadata,
		}}, nil
	case TypeVideo:
		return &DataBuffer{Video: &VideoBuffer{
			Bytes: r.video.box.Bytes(), Width: r.video.width, Height: r.video.height,
			Format: r.video.format, FrameNumber: r.video.frameNumber, TimestampUs: r.video.timestampUs,
			Metadata: r.video.metadata,
		}}, nil
	case TypeTensor:
		return &DataBuffer{Tensor: &TensorBuffer{
			Bytes: r.tensor.box.Bytes(), Shape: r.tensor.shape, DType: r.tensor.dtype,
			Layout: r.tensor.layout, Metadata: r.tensor.metadata,
		}}, nil
	case TypeJSON:
		encoded, err := json.Marshal(r.json.value)
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "failed to re-encode JSON runtime value")
		}
		return &DataBuffer{JSON: &JSONBuffer{Text: string(encoded), SchemaTag: r.json.schemaTag, Metadata: r.json.metadata}}, nil
	case TypeText:
		return &DataBuffer{Text: &TextBuffer{
			Bytes: r.text.box.Bytes(), Encoding: r.text.encoding, Language: r.text.language, Metadata: r.text.metadata,
		}}, nil
	case TypeBinary:
		return &DataBuffer{Binary: &BinaryBuffer{
			Bytes: r.binary.box.Bytes(), MimeHint: r.binary.mimeHint, Metadata: r.binary.metadata,
		}}, nil
	default:
		return nil, corepipeerr.New(corepipeerr.KindInternal, fmt.Sprintf("unhandled data type %q in ToProto", r.kind))
	}
}
