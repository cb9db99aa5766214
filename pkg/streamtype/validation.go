package streamtype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/helixml/corepipe/pkg/corepipeerr"
)

func containsAny(types []DataTypeHint) bool {
	for _, t := range types {
		if t == TypeAny {
			return true
		}
	}
	return false
}

func contains(types []DataTypeHint, target DataTypeHint) bool {
	for _, t := range types {
		if t == target {
			return true
		}
	}
	return false
}

func joinTypes(types []DataTypeHint) string {
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = string(t)
	}
	sort.Strings(strs)
	return "[" + strings.Join(strs, ", ") + "]"
}

// ValidateManifestConnection runs once at stream init / unary submit.
// Compatible if the target accepts ANY, both sides are
// untyped, or the output/input sets intersect.
func ValidateManifestConnection(fromNodeID, toNodeID string, outputTypes, inputTypes []DataTypeHint) error {
	if containsAny(inputTypes) {
		return nil
	}
	if len(outputTypes) == 0 && len(inputTypes) == 0 {
		return nil
	}
	for _, out := range outputTypes {
		if contains(inputTypes, out) {
			return nil
		}
	}
	return corepipeerr.New(corepipeerr.KindValidation,
		fmt.Sprintf("connection %s -> %s is type-incompatible: source outputs %s, target accepts %s",
			fromNodeID, toNodeID, joinTypes(outputTypes), joinTypes(inputTypes))).
		WithContext("from", fromNodeID).
		WithContext("to", toNodeID).
		WithContext("source_output_types", joinTypes(outputTypes)).
		WithContext("target_input_types", joinTypes(inputTypes))
}

// ValidateChunk runs for every incoming unnamed chunk. An
// empty declared input-type set means "accept anything".
func ValidateChunk(nodeID string, declaredInputTypes []DataTypeHint, actual DataTypeHint) error {
	if len(declaredInputTypes) == 0 || containsAny(declaredInputTypes) {
		return nil
	}
	if contains(declaredInputTypes, actual) {
		return nil
	}
	return corepipeerr.New(corepipeerr.KindTypeValidation,
		fmt.Sprintf("node %s expected one of %s, got %s", nodeID, joinTypes(declaredInputTypes), actual)).
		WithNode(nodeID).
		WithContext("expected", joinTypes(declaredInputTypes)).
		WithContext("actual", string(actual))
}

// ValidateNamedChunk validates a multi-input node's named buffers against
// its declared per-port types. requiredPorts lists the
// ports the node needs present; missing ports are reported by name.
func ValidateNamedChunk(nodeID string, requiredPorts []string, declaredInputTypes []DataTypeHint, actual map[string]*RuntimeData) error {
	var missing []string
	for _, port := range requiredPorts {
		if _, ok := actual[port]; !ok {
			missing = append(missing, port)
		}
	}
	if len(missing) > 0 {
		return corepipeerr.New(corepipeerr.KindValidation,
			fmt.Sprintf("node %s is missing required input ports: %s", nodeID, strings.Join(missing, ", "))).
			WithNode(nodeID).
			WithContext("missing_ports", strings.Join(missing, ", "))
	}
	if len(declaredInputTypes) == 0 || containsAny(declaredInputTypes) {
		return nil
	}
	for port, data := range actual {
		if !contains(declaredInputTypes, data.DataType()) {
			return corepipeerr.New(corepipeerr.KindTypeValidation,
				fmt.Sprintf("node %s port %q expected one of %s, got %s", nodeID, port, joinTypes(declaredInputTypes), data.DataType())).
				WithNode(nodeID).
				WithContext("port", port).
				WithContext("expected", joinTypes(declaredInputTypes)).
				WithContext("actual", string(data.DataType()))
		}
	}
	return nil
}
