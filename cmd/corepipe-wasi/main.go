// Command corepipe-wasi is the restricted-profile entry point:
// a standalone, no-cobra binary that reads one JSON document from stdin,
// runs it synchronously through run_sync, and writes the result as JSON to
// stdout. Logs go to stderr, the stderr-only logging discipline a
// headless daemon wants when stdout is reserved for protocol output.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/executor"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/helixml/corepipe/pkg/nodes/arithmetic"
	_ "github.com/helixml/corepipe/pkg/nodes/calculator"
)

// Exit codes.
const (
	exitSuccess         = 0
	exitValidationError = 1
	exitNodeError       = 2
	exitInternalError   = 3
)

// requestEnvelope is either a bare manifest or {manifest, input_data}.
// input_data is an array of wire DataBuffers: one element runs the
// pipeline once, feeding that element to the sole source node; more than
// one element fans the pipeline out once per element (each fed to the
// sole source node in turn) and collects the sole sink node's output for
// each run, in input order.
type requestEnvelope struct {
	Manifest  json.RawMessage          `json:"manifest"`
	InputData []*streamtype.DataBuffer `json:"input_data,omitempty"`
}

// responseEnvelope's Outputs is a map[string]*streamtype.DataBuffer for a
// single run (keyed by node id, as Execute returns) or a
// []*streamtype.DataBuffer for a fanned-out array run, one entry per
// input_data element in order.
type responseEnvelope struct {
	Status    string              `json:"status"`
	Outputs   any                 `json:"outputs,omitempty"`
	GraphInfo *executor.GraphInfo `json:"graph_info,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Error().Err(err).Msg("failed to read stdin")
		os.Exit(exitInternalError)
	}

	os.Exit(run(raw, os.Stdout))
}

// run is separated from main for testability: it never touches os.Exit
// itself beyond returning the exit code the caller should use.
func run(raw []byte, stdout io.Writer) int {
	m, inputData, err := decodeRequest(raw)
	if err != nil {
		writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
		log.Error().Err(err).Msg("request decode failed")
		return exitValidationError
	}

	if err := m.Validate(); err != nil {
		writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
		log.Error().Err(err).Msg("manifest validation failed")
		return exitValidationError
	}

	if len(inputData) > 1 {
		return runFannedOut(m, inputData, stdout)
	}
	return runSingle(m, inputData, stdout)
}

// runSingle covers a bare manifest or a manifest with at most one
// input_data element: one Execute call, outputs keyed by node id.
func runSingle(m *manifest.Manifest, inputData []*streamtype.DataBuffer, stdout io.Writer) int {
	var inputs map[string]*streamtype.RuntimeData
	if len(inputData) == 1 {
		sourceID, err := soleSourceNodeID(m)
		if err != nil {
			writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
			log.Error().Err(err).Msg("cannot route input_data")
			return exitValidationError
		}
		rd, err := streamtype.ToRuntime(inputData[0])
		if err != nil {
			writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
			log.Error().Err(err).Msg("invalid input_data")
			return exitValidationError
		}
		inputs = map[string]*streamtype.RuntimeData{sourceID: rd}
	}

	exec := executor.New(noderegistry.Default)
	outputs, graphInfo, err := exec.RunSync(m, inputs)
	if err != nil {
		writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error(), GraphInfo: graphInfo})
		log.Error().Err(err).Msg("pipeline execution failed")
		return exitCodeForErr(err)
	}

	wireOutputs, err := toWireOutputs(outputs)
	if err != nil {
		writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
		log.Error().Err(err).Msg("failed to serialize outputs")
		return exitInternalError
	}

	writeResponse(stdout, responseEnvelope{Status: "success", Outputs: wireOutputs, GraphInfo: graphInfo})
	return exitSuccess
}

// runFannedOut runs m once per input_data element, feeding each element to
// the manifest's sole source node and collecting the sole sink node's
// output for that run, preserving input order in the output array.
func runFannedOut(m *manifest.Manifest, inputData []*streamtype.DataBuffer, stdout io.Writer) int {
	sourceID, err := soleSourceNodeID(m)
	if err != nil {
		writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
		log.Error().Err(err).Msg("cannot route array-shaped input_data")
		return exitValidationError
	}
	sinkID, err := soleSinkNodeID(m)
	if err != nil {
		writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
		log.Error().Err(err).Msg("cannot collect array-shaped input_data")
		return exitValidationError
	}

	exec := executor.New(noderegistry.Default)
	results := make([]*streamtype.DataBuffer, 0, len(inputData))
	var graphInfo *executor.GraphInfo
	for i, buf := range inputData {
		rd, err := streamtype.ToRuntime(buf)
		if err != nil {
			writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
			log.Error().Err(err).Int("index", i).Msg("invalid input_data element")
			return exitValidationError
		}

		outputs, gi, err := exec.RunSync(m, map[string]*streamtype.RuntimeData{sourceID: rd})
		graphInfo = gi
		if err != nil {
			writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error(), GraphInfo: graphInfo})
			log.Error().Err(err).Int("index", i).Msg("pipeline execution failed")
			return exitCodeForErr(err)
		}

		out, ok := outputs[sinkID]
		if !ok {
			err := corepipeerr.New(corepipeerr.KindInternal, fmt.Sprintf("sink node %q produced no output", sinkID))
			writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error(), GraphInfo: graphInfo})
			return exitInternalError
		}
		wireOut, err := streamtype.ToProto(out)
		if err != nil {
			writeResponse(stdout, responseEnvelope{Status: "error", Error: err.Error()})
			log.Error().Err(err).Msg("failed to serialize fanned-out output")
			return exitInternalError
		}
		results = append(results, wireOut)
	}

	writeResponse(stdout, responseEnvelope{Status: "success", Outputs: results, GraphInfo: graphInfo})
	return exitSuccess
}

func exitCodeForErr(err error) int {
	switch corepipeerr.KindOf(err) {
	case corepipeerr.KindNodeExecution:
		return exitNodeError
	case corepipeerr.KindValidation, corepipeerr.KindTypeValidation:
		return exitValidationError
	default:
		return exitInternalError
	}
}

// soleSourceNodeID picks the one node that should receive caller-supplied
// input_data. A manifest with declared connections uses the one node with
// no incoming edge; a manifest with no connections at all (the linear
// chain-by-declaration-order strategy Execute falls back to) uses the
// first declared node.
func soleSourceNodeID(m *manifest.Manifest) (string, error) {
	if len(m.Connections) == 0 && len(m.Nodes) > 1 {
		return m.Nodes[0].ID, nil
	}
	hasIncoming := make(map[string]bool, len(m.Nodes))
	for _, c := range m.Connections {
		hasIncoming[c.To] = true
	}
	var sources []string
	for _, n := range m.Nodes {
		if !hasIncoming[n.ID] {
			sources = append(sources, n.ID)
		}
	}
	if len(sources) != 1 {
		return "", corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("input_data requires exactly one source node, found %d", len(sources)))
	}
	return sources[0], nil
}

// soleSinkNodeID picks the one node whose output is reported back for
// array-shaped input_data, using the same declaration-order fallback as
// soleSourceNodeID for a manifest with no declared connections.
func soleSinkNodeID(m *manifest.Manifest) (string, error) {
	if len(m.Connections) == 0 && len(m.Nodes) > 1 {
		return m.Nodes[len(m.Nodes)-1].ID, nil
	}
	hasOutgoing := make(map[string]bool, len(m.Nodes))
	for _, c := range m.Connections {
		hasOutgoing[c.From] = true
	}
	var sinks []string
	for _, n := range m.Nodes {
		if !hasOutgoing[n.ID] {
			sinks = append(sinks, n.ID)
		}
	}
	if len(sinks) != 1 {
		return "", corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("array-shaped input_data requires exactly one sink node, found %d", len(sinks)))
	}
	return sinks[0], nil
}

func decodeRequest(raw []byte) (*manifest.Manifest, []*streamtype.DataBuffer, error) {
	var env requestEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Manifest) > 0 {
		m, err := manifest.ParseJSON(env.Manifest)
		if err != nil {
			return nil, nil, err
		}
		return m, env.InputData, nil
	}

	// Fall back to treating the whole document as a bare manifest.
	m, err := manifest.ParseJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	return m, nil, nil
}

func toWireOutputs(outputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.DataBuffer, error) {
	out := make(map[string]*streamtype.DataBuffer, len(outputs))
	for k, rd := range outputs {
		buf, err := streamtype.ToProto(rd)
		if err != nil {
			return nil, err
		}
		out[k] = buf
	}
	return out, nil
}

func writeResponse(w io.Writer, resp responseEnvelope) {
	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
