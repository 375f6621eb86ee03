package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/publicip"
)

type Engine struct {
	cfg         config.Config
	dnsProvider provider.Provider
	resolver    publicip.Resolver
	metrics     *metrics.Metrics
}

func NewEngine(cfg config.Config, dp provider.Provider, resolver publicip.Resolver, metrics *metrics.Metrics) *Engine {
	return &Engine{
		cfg:         cfg,
		dnsProvider: dp,
		resolver:    resolver,
		metrics:     metrics,
	}
}

// Check loads the inventory, fetches the provider snapshot and classifies
// every tracked pair. An empty inventory returns an empty result without
// contacting the provider.
func (e *Engine) Check(ctx context.Context) (Result, error) {
	slog.Info("Checking records", "inventory", e.cfg.InventoryPath)
	inv, err := inventory.Load(e.cfg.InventoryPath)
	if err != nil {
		return Result{}, err
	}
	if inv.IsEmpty() {
		slog.Warn("Inventory is empty")
		return Result{}, nil
	}

	token, err := e.cfg.RequireToken()
	if err != nil {
		return Result{}, err
	}
	snapshot, err := provider.Fetch(ctx, e.dnsProvider, token)
	if err != nil {
		return Result{}, fmt.Errorf("fetch provider snapshot: %w", err)
	}

	result, err := Classify(ctx, inv, snapshot, e.resolver)
	if err != nil {
		return Result{}, err
	}

	e.metrics.SetRecords(len(result.Matches), len(result.Mismatches), len(result.Invalid))
	logSummary(result)
	return result, nil
}

// Classify partitions the inventory against a snapshot. Each address family
// is resolved at most once, and only if a tracked record needs it.
func Classify(ctx context.Context, inv *inventory.Inventory, snapshot *provider.Snapshot, resolver publicip.Resolver) (Result, error) {
	result := Result{Snapshot: snapshot}

	for _, pair := range inv.Pairs() {
		zone, ok := snapshot.FindZone(pair.Zone)
		if !ok {
			slog.Error("Invalid record, zone not found", "zone", pair.Zone, "record", pair.Record)
			result.Invalid = append(result.Invalid, pair)
			continue
		}
		record, ok := snapshot.FindRecord(zone.ID, pair.Record)
		if !ok {
			slog.Error("Invalid record, record not found", "zone", pair.Zone, "record", pair.Record)
			result.Invalid = append(result.Invalid, pair)
			continue
		}

		addr, err := result.resolve(ctx, resolver, record)
		if err != nil {
			return Result{}, err
		}

		if contentMatches(record.Content, addr) {
			slog.Debug("Record matches", "name", record.Name, "id", record.ID, "content", record.Content)
			result.Matches = append(result.Matches, record)
		} else {
			slog.Warn("Record mismatched", "name", record.Name, "id", record.ID, "content", record.Content, "address", addr)
			result.Mismatches = append(result.Mismatches, record)
		}
	}
	return result, nil
}

// resolve returns the cached address for the record's family, resolving it
// on first use.
func (r *Result) resolve(ctx context.Context, resolver publicip.Resolver, record provider.Record) (netip.Addr, error) {
	switch record.Type {
	case "A":
		if !r.IPv4.IsValid() {
			slog.Debug("Resolving public ipv4")
			addr, err := resolver.ResolveV4(ctx)
			if err != nil {
				return netip.Addr{}, fmt.Errorf("%w: ipv4 needed for A record %s: %w", ErrPublicAddress, record.Name, err)
			}
			r.IPv4 = addr
		}
		return r.IPv4, nil
	case "AAAA":
		if !r.IPv6.IsValid() {
			slog.Debug("Resolving public ipv6")
			addr, err := resolver.ResolveV6(ctx)
			if err != nil {
				return netip.Addr{}, fmt.Errorf("%w: ipv6 needed for AAAA record %s: %w", ErrPublicAddress, record.Name, err)
			}
			r.IPv6 = addr
		}
		return r.IPv6, nil
	default:
		return netip.Addr{}, fmt.Errorf("%w: %s record %s", ErrUnsupportedType, record.Type, record.Name)
	}
}

// contentMatches compares against the canonical text form. A record holding
// a non-canonical spelling of the same address is rewritten.
func contentMatches(content string, addr netip.Addr) bool {
	return content == addr.String()
}

func logSummary(result Result) {
	slog.Info("Check summary",
		"matched", len(result.Matches),
		"mismatched", len(result.Mismatches),
		"invalid", len(result.Invalid),
	)
	if len(result.Invalid) > 0 {
		slog.Error(fmt.Sprintf("Inventory contains %d invalid records", len(result.Invalid)))
	}
	if len(result.Mismatches) > 0 {
		slog.Warn(fmt.Sprintf("Inventory contains %d mismatched records", len(result.Mismatches)))
	}
	if len(result.Invalid) == 0 && len(result.Mismatches) == 0 {
		slog.Debug(fmt.Sprintf("Inventory contains %d matching records", len(result.Matches)))
	}
}
