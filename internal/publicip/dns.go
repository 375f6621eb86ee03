package publicip

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/miekg/dns"
)

// myIPName is answered by OpenDNS resolvers with the address of the client.
const myIPName = "myip.opendns.com."

// DNSResolver asks an OpenDNS resolver for the host's address: an A query
// over the IPv4 server and an AAAA query over the IPv6 server.
type DNSResolver struct {
	ServerV4 string
	ServerV6 string
	client   *dns.Client
	metrics  *metrics.Metrics
}

func NewDNSResolver(serverV4, serverV6 string, m *metrics.Metrics) *DNSResolver {
	return &DNSResolver{
		ServerV4: serverV4,
		ServerV6: serverV6,
		client:   &dns.Client{Net: "udp", Timeout: defaultTimeout},
		metrics:  m,
	}
}

func (r *DNSResolver) ResolveV4(ctx context.Context) (netip.Addr, error) {
	return r.query(ctx, IPv4, r.ServerV4, dns.TypeA)
}

func (r *DNSResolver) ResolveV6(ctx context.Context) (netip.Addr, error) {
	return r.query(ctx, IPv6, r.ServerV6, dns.TypeAAAA)
}

func (r *DNSResolver) query(ctx context.Context, family Family, server string, qtype uint16) (netip.Addr, error) {
	addr, err := r.exchange(ctx, family, server, qtype)
	r.metrics.IncPublicIPLookup("dns", string(family), err == nil)
	return addr, err
}

func (r *DNSResolver) exchange(ctx context.Context, family Family, server string, qtype uint16) (netip.Addr, error) {
	if server == "" {
		return netip.Addr{}, fmt.Errorf("dns lookup: no %s server configured", family)
	}

	m := new(dns.Msg)
	m.SetQuestion(myIPName, qtype)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns lookup via %s: %w", server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("dns lookup via %s: %s", server, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		var ip []byte
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		if family == IPv4 {
			addr = addr.Unmap()
		}
		if family.accepts(addr) {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("dns lookup via %s: %w", server, ErrNoAddress)
}
