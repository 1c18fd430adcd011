package scanning

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/anstrom/anscanner/internal/scanning Backend

// Backend runs the three scan modes and returns structured results.
type Backend interface {
	// Discover returns the live hosts for one address.
	Discover(ctx context.Context, addr string) ([]string, error)
	// ScanPorts returns the open ports in PortRange on host.
	ScanPorts(ctx context.Context, host string) ([]PortEntry, error)
	// DetectOS returns the OS description of host.
	DetectOS(ctx context.Context, host string) (string, error)
}

// TextBackend runs nmap's default report format and parses it line by line.
type TextBackend struct {
	invoker *Invoker
}

// NewTextBackend creates a TextBackend using inv.
func NewTextBackend(inv *Invoker) *TextBackend {
	return &TextBackend{invoker: inv}
}

// Discover implements Backend.
func (b *TextBackend) Discover(ctx context.Context, addr string) ([]string, error) {
	out, err := b.invoker.Discover(ctx, addr)
	if err != nil {
		return nil, err
	}
	return ParseHosts(out), nil
}

// ScanPorts implements Backend.
func (b *TextBackend) ScanPorts(ctx context.Context, host string) ([]PortEntry, error) {
	out, err := b.invoker.ScanPorts(ctx, host)
	if err != nil {
		return nil, err
	}
	return ParsePorts(out), nil
}

// DetectOS implements Backend. A failed invocation reports UnknownOS along
// with the error.
func (b *TextBackend) DetectOS(ctx context.Context, host string) (string, error) {
	out, err := b.invoker.DetectOS(ctx, host)
	if err != nil {
		return UnknownOS, err
	}
	return ParseOS(out), nil
}
