package scripthost

import (
	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// ToJS and FromJS are exported so pkg/ffi can reuse the same zero-copy
// RuntimeData<->goja.Value conversion from the opposite direction: C6
// runs scripted code inside the host and marshals data in, while C10
// exposes host-produced data out to an embedding caller.
func ToJS(rt *goja.Runtime, rd *streamtype.RuntimeData) (goja.Value, error) {
	return toJS(rt, rd)
}

func FromJS(rt *goja.Runtime, v goja.Value) (*streamtype.RuntimeData, error) {
	return fromJS(rt, v)
}

// MarshalBytes and UnmarshalBytes expose the build-tag-selected
// zero-copy/base64 byte bridge (bytesconv_zerocopy.go / bytesconv_base64.go).
func MarshalBytes(rt *goja.Runtime, b []byte) goja.Value {
	return marshalBytes(rt, b)
}

func UnmarshalBytes(v goja.Value) ([]byte, error) {
	return unmarshalBytes(v)
}

// ToIntSlice converts a goja-exported numeric array (tensor shape) into
// []int, the same conversion FromJS applies to a tensor's shape field.
func ToIntSlice(raw any) ([]int, error) {
	return toIntSlice(raw)
}
