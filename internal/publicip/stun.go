package publicip

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/pion/stun"
)

// STUNResolver learns the host's address from the mapped address of a STUN
// binding response.
type STUNResolver struct {
	Server  string
	Timeout time.Duration
	metrics *metrics.Metrics
}

func NewSTUNResolver(server string, m *metrics.Metrics) *STUNResolver {
	return &STUNResolver{Server: server, Timeout: defaultTimeout, metrics: m}
}

func (r *STUNResolver) ResolveV4(ctx context.Context) (netip.Addr, error) {
	return r.query(ctx, IPv4, "udp4")
}

func (r *STUNResolver) ResolveV6(ctx context.Context) (netip.Addr, error) {
	return r.query(ctx, IPv6, "udp6")
}

func (r *STUNResolver) query(ctx context.Context, family Family, network string) (netip.Addr, error) {
	addr, err := r.binding(ctx, family, network)
	r.metrics.IncPublicIPLookup("stun", string(family), err == nil)
	return addr, err
}

func (r *STUNResolver) binding(ctx context.Context, family Family, network string) (netip.Addr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, r.Server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("stun dial %s: %w", r.Server, err)
	}
	defer conn.Close()

	// Unblock the read when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(r.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return netip.Addr{}, fmt.Errorf("stun set deadline: %w", err)
	}

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("stun build request: %w", err)
	}
	if _, err := req.WriteTo(conn); err != nil {
		return netip.Addr{}, fmt.Errorf("stun send request: %w", err)
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return netip.Addr{}, ctx.Err()
		}
		return netip.Addr{}, fmt.Errorf("stun read response: %w", err)
	}

	res := new(stun.Message)
	res.Raw = buf[:n]
	if err := res.Decode(); err != nil {
		return netip.Addr{}, fmt.Errorf("stun decode response: %w", err)
	}
	if res.TransactionID != req.TransactionID {
		return netip.Addr{}, fmt.Errorf("stun response: transaction id mismatch")
	}

	var ip net.IP
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		ip = xorAddr.IP
	} else {
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(res); err != nil {
			return netip.Addr{}, fmt.Errorf("stun response from %s: %w", r.Server, ErrNoAddress)
		}
		ip = mapped.IP
	}

	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, fmt.Errorf("stun response from %s: %w", r.Server, ErrNoAddress)
	}
	if family == IPv4 {
		addr = addr.Unmap()
	}
	if !family.accepts(addr) {
		return netip.Addr{}, fmt.Errorf("stun response from %s: %w", r.Server, ErrNoAddress)
	}
	return addr, nil
}
