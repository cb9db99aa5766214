package streamtype

import "sync/atomic"

// byteBox is a reference-counted byte container. Clone() bumps the count
// and shares the underlying slice; Release() drops it. Bytes become safe to
// mutate in place only once the count has reached zero and the box is the
// sole owner, which this package never does — producers hand off immutable
// payloads so byteBox never copies on Clone.
type byteBox struct {
	data    []byte
	refs    atomic.Int32
}

func newByteBox(data []byte) *byteBox {
	b := &byteBox{data: data}
	b.refs.Store(1)
	return b
}

func (b *byteBox) Clone() *byteBox {
	if b == nil {
		return nil
	}
	b.refs.Add(1)
	return b
}

func (b *byteBox) Release() {
	if b == nil {
		return
	}
	b.refs.Add(-1)
}

func (b *byteBox) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}
