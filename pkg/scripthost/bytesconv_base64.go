//go:build goja_arraybuffer

package scripthost

import (
	"encoding/base64"

	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// marshalBytes is the base64-in-JSON fallback path for hosts
// without native ArrayBuffer aliasing: byte payloads cross as a base64
// string instead of an aliased buffer. Acceptable cost  is
// roughly 2-3x for large arrays; selected at compile time via
// -tags goja_arraybuffer, inverted from the tag's literal name because
// the default (untagged) build is the zero-copy path.
func marshalBytes(rt *goja.Runtime, b []byte) goja.Value {
	return rt.ToValue(base64.StdEncoding.EncodeToString(b))
}

func unmarshalBytes(v goja.Value) ([]byte, error) {
	s, ok := v.Export().(string)
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindTypeValidation, "expected a base64 string for a byte-payload field")
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindTypeValidation, err, "invalid base64 byte payload")
	}
	return decoded, nil
}
