// Package gemini speaks the Gemini Live bidirectional websocket protocol:
// the initial setup frame, relayed realtime input, server content, and the
// tool-call / tool-response exchange.
package gemini

import (
	"encoding/json"
)

// SetupFrame is the first message sent after connecting. It fixes the
// model, generation options, tool catalog, and system instruction for
// the rest of the session.
type SetupFrame struct {
	Setup Setup `json:"setup"`
}

// Setup is the body of the setup frame.
type Setup struct {
	Model             string           `json:"model"`
	GenerationConfig  GenerationConfig `json:"generation_config"`
	Tools             []map[string]any `json:"tools"`
	SystemInstruction *Content         `json:"system_instruction,omitempty"`
}

// GenerationConfig holds the response generation options.
type GenerationConfig struct {
	ResponseModalities []string `json:"response_modalities"`
}

// Content is a list of parts, as used for the system instruction.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is one piece of content.
type Part struct {
	Text string `json:"text,omitempty"`
}

// FunctionCall is one tool invocation requested by the model, normalized
// from either of the two envelope shapes the server emits.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
}

// serverFrame probes an inbound model frame for tool calls. The server
// emits calls either inside a model turn's parts or as a top-level batch.
type serverFrame struct {
	ServerContent *struct {
		ModelTurn *struct {
			Parts []struct {
				FunctionCall *FunctionCall `json:"functionCall"`
			} `json:"parts"`
		} `json:"modelTurn"`
	} `json:"serverContent"`
	ToolCall *struct {
		FunctionCalls []FunctionCall `json:"functionCalls"`
	} `json:"toolCall"`
}

// ExtractFunctionCalls normalizes both observed tool-call envelope shapes
// into a single ordered slice. A frame with no calls yields an empty
// slice and no error; a frame that is not valid JSON yields an error.
func ExtractFunctionCalls(raw []byte) ([]FunctionCall, error) {
	var frame serverFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}

	var calls []FunctionCall
	if sc := frame.ServerContent; sc != nil && sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.FunctionCall != nil {
				calls = append(calls, *part.FunctionCall)
			}
		}
	}
	if tc := frame.ToolCall; tc != nil {
		calls = append(calls, tc.FunctionCalls...)
	}
	return calls, nil
}

// ToolResponseFrame correlates a tool result back to its triggering call.
type ToolResponseFrame struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

// ToolResponse carries one or more function responses.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// FunctionResponse is the result of one function call.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response FunctionResult `json:"response"`
	ID       string         `json:"id,omitempty"`
}

// FunctionResult wraps the output in the nesting the server expects.
type FunctionResult struct {
	Result ResultOutput `json:"result"`
}

// ResultOutput carries the human-readable tool output.
type ResultOutput struct {
	Output string `json:"output"`
}

// NewToolResponse builds the response frame for one executed call.
func NewToolResponse(call FunctionCall, output string) ToolResponseFrame {
	return ToolResponseFrame{
		ToolResponse: ToolResponse{
			FunctionResponses: []FunctionResponse{
				{
					Name:     call.Name,
					Response: FunctionResult{Result: ResultOutput{Output: output}},
					ID:       call.ID,
				},
			},
		},
	}
}

// IsRealtimeInput reports whether a client frame carries the realtime
// input envelope. Only these frames are forwarded to the model.
func IsRealtimeInput(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	if _, ok := probe["realtime_input"]; ok {
		return true
	}
	_, ok := probe["realtimeInput"]
	return ok
}
