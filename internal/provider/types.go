package provider

import "encoding/json"

// FunctionCall is a tool invocation requested by the model inside a chunk.
// ID may be empty; the turn processor synthesizes one in that case.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Chunk is one piece of a streamed model response. Text and FunctionCalls
// are mutually exclusive per chunk.
type Chunk struct {
	Text          string         `json:"text,omitempty"`
	FunctionCalls []FunctionCall `json:"function_calls,omitempty"`
	Err           error          `json:"-"`
}

// FunctionResponse is the model-bound reply for one resolved tool call,
// keyed by the call's ID and name.
type FunctionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Part is one element of a model-input message: either user/system text or
// a function response from a previous turn.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// TextPart builds a text input part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ResponsePart builds a function-response input part.
func ResponsePart(fr FunctionResponse) Part {
	return Part{FunctionResponse: &fr}
}
