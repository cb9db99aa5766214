package arithmetic

import (
	"encoding/json"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
)

const AddNodeType = "AddNode"

func init() {
	noderegistry.Register(AddNodeType, NewAdd, manifest.NodeCapabilities{})
}

type addConfig struct {
	Addend *float64 `json:"addend"`
}

// AddNode adds a configured constant (default 0) to a single JSON number
// input.
type AddNode struct {
	addend float64
}

// NewAdd is the noderegistry.Factory for AddNodeType.
func NewAdd(string) (noderegistry.Node, error) {
	return &AddNode{}, nil
}

func (n *AddNode) Initialize(params string) error {
	n.addend = 0
	if params == "" {
		return nil
	}
	var cfg addConfig
	if err := json.Unmarshal([]byte(params), &cfg); err != nil {
		return corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid AddNode params")
	}
	if cfg.Addend != nil {
		n.addend = *cfg.Addend
	}
	return nil
}

func (n *AddNode) Cleanup() error { return nil }

func (n *AddNode) Process(inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	v, err := scalarInput(inputs)
	if err != nil {
		return nil, err
	}
	out := streamtype.NewJSONValue(v+n.addend, "", nil)
	return map[string]*streamtype.RuntimeData{"": out}, nil
}
