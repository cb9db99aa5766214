// Package calculator is a reference native JSON->JSON node. It evaluates
// the requested arithmetic operation through a goja runtime: build an
// expression string, run it through goja, rather than hand-rolling
// arithmetic switch-cases.
package calculator

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
)

const NodeType = "CalculatorNode"

func init() {
	noderegistry.Register(NodeType, New, manifest.NodeCapabilities{})
}

type request struct {
	Operation string    `json:"operation"`
	Operands  []float64 `json:"operands"`
}

// Node evaluates {"operation":"add"|"subtract"|"multiply"|"divide","operands":[...]}.
type Node struct{}

// New is the noderegistry.Factory for NodeType.
func New(string) (noderegistry.Node, error) {
	return &Node{}, nil
}

func (n *Node) Initialize(string) error { return nil }
func (n *Node) Cleanup() error          { return nil }

func (n *Node) Process(inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	rd, err := soleInput(inputs)
	if err != nil {
		return nil, err
	}
	value, err := rd.JSONValue()
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindTypeValidation, err, "calculator node requires a JSON input")
	}

	req, err := decodeRequest(value)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "invalid calculator request")
	}

	expr, err := buildExpression(req)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "unsupported calculator operation")
	}

	vm := goja.New()
	result, err := vm.RunString(expr)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "failed to evaluate expression")
	}

	out := streamtype.NewJSONValue(map[string]any{
		"result":    result.ToFloat(),
		"operation": req.Operation,
	}, "", nil)

	return map[string]*streamtype.RuntimeData{"": out}, nil
}

func soleInput(inputs map[string]*streamtype.RuntimeData) (*streamtype.RuntimeData, error) {
	if rd, ok := inputs[""]; ok {
		return rd, nil
	}
	for _, rd := range inputs {
		return rd, nil
	}
	return nil, corepipeerr.New(corepipeerr.KindValidation, "calculator node received no input")
}

func decodeRequest(value any) (request, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return request{}, fmt.Errorf("expected a JSON object, got %T", value)
	}
	op, _ := obj["operation"].(string)
	rawOperands, _ := obj["operands"].([]any)
	operands := make([]float64, 0, len(rawOperands))
	for _, o := range rawOperands {
		f, ok := o.(float64)
		if !ok {
			return request{}, fmt.Errorf("operand %v is not numeric", o)
		}
		operands = append(operands, f)
	}
	return request{Operation: op, Operands: operands}, nil
}

func buildExpression(req request) (string, error) {
	if len(req.Operands) == 0 {
		return "", fmt.Errorf("at least one operand is required")
	}
	var op string
	switch strings.ToLower(req.Operation) {
	case "add":
		op = "+"
	case "subtract":
		op = "-"
	case "multiply":
		op = "*"
	case "divide":
		op = "/"
	default:
		return "", fmt.Errorf("unknown operation %q", req.Operation)
	}

	parts := make([]string, len(req.Operands))
	for i, v := range req.Operands {
		parts[i] = fmt.Sprintf("(%v)", v)
	}
	return strings.Join(parts, op), nil
}
