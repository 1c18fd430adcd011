package resolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/anscanner/internal/errors"
)

const defaultDNSTimeout = 5 * time.Second

// Exchanger sends a DNS message to a server. *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// DNSLookuper resolves names by sending A queries to one explicit server,
// bypassing the platform resolver configuration.
type DNSLookuper struct {
	server string
	client Exchanger
}

// NewDNSLookuper creates a lookuper that queries server ("host:port").
func NewDNSLookuper(server string) *DNSLookuper {
	return &DNSLookuper{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: defaultDNSTimeout},
	}
}

// LookupIPv4 implements Lookuper.
func (d *DNSLookuper) LookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := d.client.ExchangeContext(ctx, msg, d.server)
	if err != nil {
		return nil, errors.ErrResolution(host, fmt.Errorf("query %s: %w", d.server, err))
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, errors.ErrResolution(host, fmt.Errorf("server %s answered %s", d.server, dns.RcodeToString[resp.Rcode]))
	}

	var ips []net.IP
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A)
		}
	}
	if len(ips) == 0 {
		return nil, errors.ErrResolution(host, fmt.Errorf("no A records from %s", d.server))
	}
	return ips, nil
}
