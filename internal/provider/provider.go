// Package provider defines the contract between the agent runtime and the
// conversation client that talks to the generative model. The HTTP/gRPC
// client itself lives outside this repository; the runtime only depends on
// the streaming shape below.
package provider

import "context"

// Client is the conversation client consumed by the turn processor.
type Client interface {
	// SendMessageStream sends the input parts and returns a channel of
	// response chunks. Initial connection errors are returned directly;
	// mid-stream errors are delivered via Chunk.Err. The channel is
	// closed when the response completes.
	SendMessageStream(ctx context.Context, parts []Part) (<-chan Chunk, error)
}
