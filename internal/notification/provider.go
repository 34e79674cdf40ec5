package notification

import "context"

// Provider is one external delivery backend. Implementations must be safe
// for concurrent use.
type Provider interface {
	Name() string
	Channel() string
	Enabled() bool
	ValidateConfig() error
	Send(ctx context.Context, p *Payload) error
}
