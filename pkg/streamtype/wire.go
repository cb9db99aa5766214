package streamtype

// DataBuffer is the wire (serialized) form of a payload: exactly one
// variant field is set, mirroring discriminated-union JSON shape.
// JSON (de)serialization uses encoding/json throughout — see DESIGN.md for
// why no third-party codec was substituted here.
type DataBuffer struct {
	Audio  *AudioBuffer  `json:"audio,omitempty"`
	Video  *VideoBuffer  `json:"video,omitempty"`
	Tensor *TensorBuffer `json:"tensor,omitempty"`
	JSON   *JSONBuffer   `json:"json,omitempty"`
	Text   *TextBuffer   `json:"text,omitempty"`
	Binary *BinaryBuffer `json:"binary,omitempty"`
}

// AudioBuffer is interleaved PCM samples plus format metadata.
type AudioBuffer struct {
	Bytes      []byte            `json:"bytes"`
	SampleRate int               `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Format     SampleFormat      `json:"format"`
	NumSamples int               `json:"num_samples"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// VideoBuffer is a single raw pixel frame.
type VideoBuffer struct {
	Bytes       []byte            `json:"bytes"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Format      PixelFormat       `json:"format"`
	FrameNumber uint64            `json:"frame_number"`
	TimestampUs int64             `json:"timestamp_us"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TensorBuffer is an opaque element block with shape/dtype metadata.
type TensorBuffer struct {
	Bytes    []byte            `json:"bytes"`
	Shape    []int             `json:"shape"`
	DType    TensorDType       `json:"dtype"`
	Layout   string            `json:"layout,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// JSONBuffer is UTF-8 JSON text with an uninterpreted schema tag.
type JSONBuffer struct {
	Text       string            `json:"text"`
	SchemaTag  string            `json:"schema_tag,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TextBuffer is UTF-8 text with a declared encoding and optional language.
type TextBuffer struct {
	Bytes    []byte            `json:"bytes"`
	Encoding string            `json:"encoding"`
	Language string            `json:"language,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BinaryBuffer is an opaque byte payload with a MIME hint.
type BinaryBuffer struct {
	Bytes    []byte            `json:"bytes"`
	MimeHint string            `json:"mime_hint,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// setVariants counts how many variant fields of b are populated; the
// caller (ToRuntime) turns a count other than one into a typed validation
// error.
func (b *DataBuffer) setVariants() int {
	count := 0
	if b.Audio != nil {
		count++
	}
	if b.Video != nil {
		count++
	}
	if b.Tensor != nil {
		count++
	}
	if b.JSON != nil {
		count++
	}
	if b.Text != nil {
		count++
	}
	if b.Binary != nil {
		count++
	}
	return count
}
