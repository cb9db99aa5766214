// Package arithmetic provides MultiplyNode and AddNode: single-input,
// single-output JSON-number nodes used to compose small numeric
// pipelines without pulling in the full calculator expression evaluator.
package arithmetic

import (
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
)

func scalarInput(inputs map[string]*streamtype.RuntimeData) (float64, error) {
	rd, ok := inputs[""]
	if !ok {
		for _, v := range inputs {
			rd, ok = v, true
			break
		}
	}
	if !ok {
		return 0, corepipeerr.New(corepipeerr.KindValidation, "node received no input")
	}
	value, err := rd.JSONValue()
	if err != nil {
		return 0, corepipeerr.Wrap(corepipeerr.KindTypeValidation, err, "node requires a JSON input")
	}
	f, ok := value.(float64)
	if !ok {
		return 0, corepipeerr.New(corepipeerr.KindTypeValidation, "node requires a JSON number input")
	}
	return f, nil
}
