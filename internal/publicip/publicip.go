package publicip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/metrics"
	"go.uber.org/multierr"
)

const defaultTimeout = 5 * time.Second

// ErrNoAddress is returned when a lookup succeeded but yielded no usable
// address of the requested family.
var ErrNoAddress = errors.New("no public address found")

// Resolver discovers the public addresses of this host.
type Resolver interface {
	ResolveV4(ctx context.Context) (netip.Addr, error)
	ResolveV6(ctx context.Context) (netip.Addr, error)
}

// Family is an address family label used in logs and metrics.
type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
)

func (f Family) accepts(addr netip.Addr) bool {
	if f == IPv4 {
		return addr.Is4()
	}
	return addr.Is6() && !addr.Is4In6()
}

// New returns the resolver chain described by cfg: OpenDNS first, then STUN
// when a STUN server is configured.
func New(cfg config.PublicIP, m *metrics.Metrics) *Chain {
	resolvers := []Resolver{NewDNSResolver(cfg.DNSv4, cfg.DNSv6, m)}
	if cfg.STUN != "" {
		resolvers = append(resolvers, NewSTUNResolver(cfg.STUN, m))
	}
	return NewChain(resolvers...)
}

// Chain asks each resolver in order and returns the first address found.
type Chain struct {
	resolvers []Resolver
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

func (c *Chain) ResolveV4(ctx context.Context) (netip.Addr, error) {
	return c.resolve(ctx, IPv4, Resolver.ResolveV4)
}

func (c *Chain) ResolveV6(ctx context.Context) (netip.Addr, error) {
	return c.resolve(ctx, IPv6, Resolver.ResolveV6)
}

func (c *Chain) resolve(ctx context.Context, family Family, fn func(Resolver, context.Context) (netip.Addr, error)) (netip.Addr, error) {
	var errs error
	for _, r := range c.resolvers {
		addr, err := fn(r, ctx)
		if err == nil {
			return addr, nil
		}
		slog.Debug("Public address lookup failed", "family", family, "error", err)
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if errs == nil {
		errs = ErrNoAddress
	}
	return netip.Addr{}, fmt.Errorf("resolve %s: %w", family, errs)
}

// Static always returns fixed addresses. An invalid address is reported as
// ErrNoAddress.
type Static struct {
	V4 netip.Addr
	V6 netip.Addr
}

func (s Static) ResolveV4(ctx context.Context) (netip.Addr, error) {
	if !s.V4.IsValid() {
		return netip.Addr{}, ErrNoAddress
	}
	return s.V4, nil
}

func (s Static) ResolveV6(ctx context.Context) (netip.Addr, error) {
	if !s.V6.IsValid() {
		return netip.Addr{}, ErrNoAddress
	}
	return s.V6, nil
}
