package llm

import "context"

// Client is a chat-completion provider.
type Client interface {
	// Name is the provider key used in logs, errors and the usage ledger.
	Name() string
	Chat(ctx context.Context, req *Request) (*ChatResponse, error)
	// Ping verifies credentials with the cheapest call the API offers.
	Ping(ctx context.Context) error
}
