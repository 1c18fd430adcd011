// Package resolver turns a user supplied target into the list of IPv4
// addresses a sweep should probe.
//
// A target is a hostname or IPv4 address with an optional ":port" suffix,
// which is discarded. Names that cannot be resolved are treated as the first
// three octets of a /24 and expanded to prefix.1 through prefix.254.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
)

const (
	firstHostOctet = 1
	lastHostOctet  = 254
	prefixOctets   = 3
)

// Lookuper resolves a hostname to its IPv4 addresses.
type Lookuper interface {
	LookupIPv4(ctx context.Context, host string) ([]net.IP, error)
}

// Result is the outcome of resolving one target.
type Result struct {
	// Host is the input with any port suffix removed.
	Host string
	// Addresses is the ordered list of addresses to probe.
	Addresses []string
	// Fallback is set when Addresses is a synthetic /24 sweep.
	Fallback bool
	// Cause is the lookup error that triggered the fallback.
	Cause error
}

// Resolver expands targets into address lists.
type Resolver struct {
	lookup Lookuper
	strict bool
	logger *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrict rejects fallback prefixes that are not three IPv4 octets.
func WithStrict(strict bool) Option {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// New creates a Resolver. A nil lookuper uses the platform resolver.
func New(lookup Lookuper, logger *logging.Logger, opts ...Option) *Resolver {
	if lookup == nil {
		lookup = NewSystemLookuper()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		lookup: lookup,
		logger: logger.WithComponent("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands input into the addresses to probe. It only fails for an
// empty target, a target that looks like a command-line option, or an
// unusable prefix in strict mode.
func (r *Resolver) Resolve(ctx context.Context, input string) (*Result, error) {
	host := strings.TrimSpace(StripPort(input))
	if host == "" {
		return nil, errors.ErrInvalidTarget(input, "empty target")
	}
	// nmap would read a leading '-' as an option.
	if strings.HasPrefix(host, "-") {
		return nil, errors.ErrInvalidTarget(host, "target must not start with '-'")
	}

	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			r.logger.Info("Target is an IPv4 literal", "target", host)
			return &Result{Host: host, Addresses: []string{v4.String()}}, nil
		}
	}

	ips, err := r.lookup.LookupIPv4(ctx, host)
	if err == nil {
		for _, ip := range ips {
			if v4 := ip.To4(); v4 != nil {
				r.logger.Info("Target resolved", "target", host, "address", v4.String())
				return &Result{Host: host, Addresses: []string{v4.String()}}, nil
			}
		}
		err = errors.ErrResolution(host, fmt.Errorf("no IPv4 address for %s", host))
	}

	if ctx.Err() != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeCanceled, "Resolution interrupted", host, ctx.Err())
	}

	if r.strict && !IsSubnetPrefix(host) {
		return nil, errors.ErrInvalidTarget(host, "not resolvable and not a three-octet prefix")
	}

	r.logger.Warn("Target did not resolve, sweeping /24 instead",
		"target", host,
		"error", err)

	return &Result{
		Host:      host,
		Addresses: Subnet(host),
		Fallback:  true,
		Cause:     err,
	}, nil
}

// StripPort removes everything from the first ':' onward.
func StripPort(input string) string {
	if i := strings.IndexByte(input, ':'); i >= 0 {
		return input[:i]
	}
	return input
}

// Subnet builds prefix.1 through prefix.254. The prefix is used verbatim.
func Subnet(prefix string) []string {
	addrs := make([]string, 0, lastHostOctet-firstHostOctet+1)
	for i := firstHostOctet; i <= lastHostOctet; i++ {
		addrs = append(addrs, prefix+"."+strconv.Itoa(i))
	}
	return addrs
}

// IsSubnetPrefix reports whether s is three dot-separated octets in 0-255.
func IsSubnetPrefix(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != prefixOctets {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 || strings.Trim(part, "0123456789") != "" {
			return false
		}
		if n, _ := strconv.Atoi(part); n > 255 {
			return false
		}
	}
	return true
}

// SystemLookuper resolves names through the platform resolver.
type SystemLookuper struct {
	resolver *net.Resolver
}

// NewSystemLookuper returns a lookuper backed by net.DefaultResolver.
func NewSystemLookuper() *SystemLookuper {
	return &SystemLookuper{resolver: net.DefaultResolver}
}

// LookupIPv4 implements Lookuper.
func (s *SystemLookuper) LookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	ips, err := s.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, errors.ErrResolution(host, err)
	}
	return ips, nil
}
