//go:build !goja_arraybuffer

package scripthost

import (
	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// marshalBytes aliases a Go byte slice directly into the JS heap via
// goja's ArrayBuffer support — no
// copy, no base64 encoding. This is the default build; compile with
// -tags goja_arraybuffer to select the base64-in-JSON fallback instead
// (see bytesconv_base64.go), for restricted hosts where ArrayBuffer
// aliasing is unavailable.
func marshalBytes(rt *goja.Runtime, b []byte) goja.Value {
	return rt.ToValue(rt.NewArrayBuffer(b))
}

func unmarshalBytes(v goja.Value) ([]byte, error) {
	exported := v.Export()
	ab, ok := exported.(goja.ArrayBuffer)
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindTypeValidation, "expected an ArrayBuffer for a byte-payload field")
	}
	return ab.Bytes(), nil
}
