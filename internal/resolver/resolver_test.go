package resolver

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/anscanner/internal/errors"
)

// fakeLookuper answers from a fixed table and records the names it was asked.
type fakeLookuper struct {
	answers map[string][]net.IP
	asked   []string
}

func (f *fakeLookuper) LookupIPv4(_ context.Context, host string) ([]net.IP, error) {
	f.asked = append(f.asked, host)
	if ips, ok := f.answers[host]; ok {
		return ips, nil
	}
	return nil, errors.ErrResolution(host, stderrors.New("no such host"))
}

func TestStripPort(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"example.com:8080", "example.com"},
		{"10.0.0.1:22", "10.0.0.1"},
		{"host:1:2", "host"},
		{"example.com", "example.com"},
		{":80", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPort(tt.input))
		})
	}
}

func TestResolveUsesHostBeforeColon(t *testing.T) {
	lookup := &fakeLookuper{answers: map[string][]net.IP{
		"example.com": {net.ParseIP("93.184.216.34")},
	}}
	r := New(lookup, nil)

	res, err := r.Resolve(context.Background(), "example.com:443")
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com"}, lookup.asked)
	assert.Equal(t, "example.com", res.Host)
	assert.Equal(t, []string{"93.184.216.34"}, res.Addresses)
	assert.False(t, res.Fallback)
}

func TestResolveReturnsFirstIPv4(t *testing.T) {
	lookup := &fakeLookuper{answers: map[string][]net.IP{
		"dual.example": {net.ParseIP("2001:db8::1"), net.ParseIP("192.0.2.7"), net.ParseIP("192.0.2.8")},
	}}
	r := New(lookup, nil)

	res, err := r.Resolve(context.Background(), "dual.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.7"}, res.Addresses)
}

func TestResolveIPv4Literal(t *testing.T) {
	lookup := &fakeLookuper{}
	r := New(lookup, nil)

	res, err := r.Resolve(context.Background(), "192.168.1.5:8080")
	require.NoError(t, err)

	assert.Equal(t, []string{"192.168.1.5"}, res.Addresses)
	assert.Empty(t, lookup.asked, "literal addresses should not hit the resolver")
}

func TestResolveFallsBackToSubnet(t *testing.T) {
	r := New(&fakeLookuper{}, nil)

	res, err := r.Resolve(context.Background(), "badhost")
	require.NoError(t, err)

	require.True(t, res.Fallback)
	require.Error(t, res.Cause)
	assert.True(t, errors.IsCode(res.Cause, errors.CodeResolutionFailed))
	require.Len(t, res.Addresses, 254)
	assert.Equal(t, "badhost.1", res.Addresses[0])
	assert.Equal(t, "badhost.254", res.Addresses[253])
	for i, addr := range res.Addresses {
		assert.Equal(t, "badhost."+strconv.Itoa(i+1), addr)
	}
}

func TestResolveFallbackWhenNoIPv4(t *testing.T) {
	lookup := &fakeLookuper{answers: map[string][]net.IP{
		"v6only": {net.ParseIP("2001:db8::1")},
	}}
	r := New(lookup, nil)

	res, err := r.Resolve(context.Background(), "v6only")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Len(t, res.Addresses, 254)
}

func TestResolveStrictMode(t *testing.T) {
	r := New(&fakeLookuper{}, nil, WithStrict(true))

	t.Run("rejects malformed prefix", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "badhost")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	})

	t.Run("accepts three-octet prefix", func(t *testing.T) {
		res, err := r.Resolve(context.Background(), "192.168.7")
		require.NoError(t, err)
		assert.True(t, res.Fallback)
		assert.Equal(t, "192.168.7.1", res.Addresses[0])
		assert.Equal(t, "192.168.7.254", res.Addresses[253])
	})
}

func TestResolveEmptyTarget(t *testing.T) {
	r := New(&fakeLookuper{}, nil)

	for _, input := range []string{"", "   ", ":8080"} {
		_, err := r.Resolve(context.Background(), input)
		require.Error(t, err, "input %q", input)
		assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	}
}

func TestResolveRejectsOptionLikeTarget(t *testing.T) {
	for _, strict := range []bool{false, true} {
		lookup := &fakeLookuper{}
		r := New(lookup, nil, WithStrict(strict))

		for _, input := range []string{"-iL/tmp/x", "-oN:8080", " --script=x"} {
			res, err := r.Resolve(context.Background(), input)
			require.Error(t, err, "input %q strict=%v", input, strict)
			assert.Nil(t, res)
			assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
		}
		assert.Empty(t, lookup.asked, "option-like targets are never looked up")
	}
}

func TestResolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeLookuper{}, nil).Resolve(ctx, "badhost")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCanceled))
}

func TestIsSubnetPrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"192.168.1", true},
		{"10.0.0", true},
		{"0.0.0", true},
		{"256.1.1", false},
		{"192.168", false},
		{"192.168.1.1", false},
		{"a.b.c", false},
		{"+1.2.3", false},
		{"1..3", false},
		{"badhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsSubnetPrefix(tt.input))
		})
	}
}

// fakeExchanger returns a canned DNS response.
type fakeExchanger struct {
	resp    *dns.Msg
	err     error
	gotAddr string
	gotName string
}

func (f *fakeExchanger) ExchangeContext(_ context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error) {
	f.gotAddr = address
	if len(m.Question) > 0 {
		f.gotName = m.Question[0].Name
	}
	return f.resp, time.Millisecond, f.err
}

func TestDNSLookuper(t *testing.T) {
	t.Run("returns A records", func(t *testing.T) {
		resp := new(dns.Msg)
		resp.Rcode = dns.RcodeSuccess
		a, err := dns.NewRR("example.com. 300 IN A 192.0.2.10")
		require.NoError(t, err)
		cname, err := dns.NewRR("example.com. 300 IN CNAME other.example.com.")
		require.NoError(t, err)
		resp.Answer = []dns.RR{cname, a}

		ex := &fakeExchanger{resp: resp}
		d := &DNSLookuper{server: "9.9.9.9:53", client: ex}

		ips, err := d.LookupIPv4(context.Background(), "example.com")
		require.NoError(t, err)
		require.Len(t, ips, 1)
		assert.Equal(t, "192.0.2.10", ips[0].String())
		assert.Equal(t, "9.9.9.9:53", ex.gotAddr)
		assert.Equal(t, "example.com.", ex.gotName)
	})

	t.Run("nxdomain is a resolution error", func(t *testing.T) {
		resp := new(dns.Msg)
		resp.Rcode = dns.RcodeNameError
		d := &DNSLookuper{server: "9.9.9.9:53", client: &fakeExchanger{resp: resp}}

		_, err := d.LookupIPv4(context.Background(), "badhost")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeResolutionFailed))
	})

	t.Run("transport failure", func(t *testing.T) {
		d := &DNSLookuper{server: "9.9.9.9:53", client: &fakeExchanger{err: stderrors.New("i/o timeout")}}

		_, err := d.LookupIPv4(context.Background(), "example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "i/o timeout")
	})

	t.Run("drives the resolver fallback", func(t *testing.T) {
		resp := new(dns.Msg)
		resp.Rcode = dns.RcodeNameError
		d := &DNSLookuper{server: "9.9.9.9:53", client: &fakeExchanger{resp: resp}}

		res, err := New(d, nil).Resolve(context.Background(), "badhost:80")
		require.NoError(t, err)
		assert.True(t, res.Fallback)
		assert.Len(t, res.Addresses, 254)
	})
}
