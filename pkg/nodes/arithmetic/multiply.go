package arithmetic

import (
	"encoding/json"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
)

const MultiplyNodeType = "MultiplyNode"

func init() {
	noderegistry.Register(MultiplyNodeType, NewMultiply, manifest.NodeCapabilities{})
}

type multiplyConfig struct {
	Factor *float64 `json:"factor"`
}

// MultiplyNode multiplies a single JSON number input by a configured
// factor (default 1).
type MultiplyNode struct {
	factor float64
}

// NewMultiply is the noderegistry.Factory for MultiplyNodeType.
func NewMultiply(string) (noderegistry.Node, error) {
	return &MultiplyNode{factor: 1}, nil
}

func (n *MultiplyNode) Initialize(params string) error {
	n.factor = 1
	if params == "" {
		return nil
	}
	var cfg multiplyConfig
	if err := json.Unmarshal([]byte(params), &cfg); err != nil {
		return corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid MultiplyNode params")
	}
	if cfg.Factor != nil {
		n.factor = *cfg.Factor
	}
	return nil
}

func (n *MultiplyNode) Cleanup() error { return nil }

func (n *MultiplyNode) Process(inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	v, err := scalarInput(inputs)
	if err != nil {
		return nil, err
	}
	out := streamtype.NewJSONValue(v*n.factor, "", nil)
	return map[string]*streamtype.RuntimeData{"": out}, nil
}
