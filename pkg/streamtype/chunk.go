package streamtype

import "github.com/helixml/corepipe/pkg/corepipeerr"

// DataChunk is the streaming envelope: either one unnamed
// buffer or a non-empty named-port map, never both.
type DataChunk struct {
	NodeID       string
	Buffer       *RuntimeData
	NamedBuffers map[string]*RuntimeData
	Sequence     uint64
	TimestampMs  int64
}

// Validate enforces "exactly one of {buffer, named_buffers} is set" per
// open question: both-set is rejected rather than arbitrarily
// preferring one.
func (c *DataChunk) Validate() error {
	hasBuffer := c.Buffer != nil
	hasNamed := len(c.NamedBuffers) > 0
	switch {
	case hasBuffer && hasNamed:
		return corepipeerr.New(corepipeerr.KindValidation, "data chunk must set exactly one of buffer or named_buffers, got both")
	case !hasBuffer && !hasNamed:
		return corepipeerr.New(corepipeerr.KindValidation, "data chunk must set exactly one of buffer or named_buffers, got neither")
	default:
		return nil
	}
}
