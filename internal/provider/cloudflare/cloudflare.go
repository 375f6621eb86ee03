package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/libdns/libdns"
)

const (
	perPage        = 50
	zoneStatus     = "active"
	zoneEditPerm   = "#zone:edit"
	allZonesMetric = "all"
)

type CloudflareProvider struct {
	metrics *metrics.Metrics
	opts    []cloudflare.Option

	mu      sync.Mutex
	clients map[string]*cloudflare.API // Cache clients by token
}

// New returns a provider that builds one API client per token on first use.
// opts are passed to every client, e.g. cloudflare.BaseURL in tests.
func New(metrics *metrics.Metrics, opts ...cloudflare.Option) *CloudflareProvider {
	return &CloudflareProvider{
		metrics: metrics,
		opts:    opts,
		clients: make(map[string]*cloudflare.API),
	}
}

func (p *CloudflareProvider) client(token string) (*cloudflare.API, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if api, ok := p.clients[token]; ok {
		return api, nil
	}
	api, err := cloudflare.NewWithAPIToken(token, p.opts...)
	if err != nil {
		return nil, &provider.Error{Op: "create client", Err: err}
	}
	p.clients[token] = api
	return api, nil
}

// Verify checks that the token is valid and returns its status.
func (p *CloudflareProvider) Verify(ctx context.Context, token string) (string, error) {
	api, err := p.client(token)
	if err != nil {
		return "", err
	}
	body, err := api.VerifyAPIToken(ctx)
	if err != nil {
		p.metrics.IncDNSRequest("verify", allZonesMetric, false)
		return "", wrapError("verify token", err)
	}
	p.metrics.IncDNSRequest("verify", allZonesMetric, true)
	return body.Status, nil
}

// Zones returns the active zones the token may edit.
func (p *CloudflareProvider) Zones(ctx context.Context, token string) ([]provider.Zone, error) {
	slog.Debug("Getting zones")
	start := time.Now()

	api, err := p.client(token)
	if err != nil {
		return nil, err
	}

	// The SDK walks every page itself and rejects explicit page options.
	resp, err := api.ListZonesContext(ctx)
	if err != nil {
		p.metrics.IncDNSRequest("read", allZonesMetric, false)
		return nil, wrapError("list zones", err)
	}

	var zones []provider.Zone
	for _, z := range resp.Result {
		if z.Status != zoneStatus || !slices.Contains(z.Permissions, zoneEditPerm) {
			slog.Debug("Skipping zone", "zone", z.Name, "status", z.Status)
			continue
		}
		zones = append(zones, provider.Zone{ID: z.ID, Name: z.Name})
	}

	p.metrics.IncDNSRequest("read", allZonesMetric, true)
	slog.Debug("Retrieved zones", "count", len(zones), "duration", time.Since(start))
	return zones, nil
}

// Records returns the unlocked A and AAAA records of zones.
func (p *CloudflareProvider) Records(ctx context.Context, token string, zones []provider.Zone) ([]provider.Record, error) {
	api, err := p.client(token)
	if err != nil {
		return nil, err
	}

	var records []provider.Record
	for _, zone := range zones {
		found, err := p.zoneRecords(ctx, api, zone)
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}
	return records, nil
}

func (p *CloudflareProvider) zoneRecords(ctx context.Context, api *cloudflare.API, zone provider.Zone) ([]provider.Record, error) {
	slog.Debug("Getting DNS records", "zone", zone.Name)
	start := time.Now()

	var result []provider.Record
	page := 1
	for {
		rc := cloudflare.ZoneIdentifier(zone.ID)
		params := cloudflare.ListDNSRecordsParams{
			ResultInfo: cloudflare.ResultInfo{
				Page:    page,
				PerPage: perPage,
			},
		}

		records, resultInfo, err := api.ListDNSRecords(ctx, rc, params)
		if err != nil {
			p.metrics.IncDNSRequest("read", zone.ID, false)
			return nil, wrapError(fmt.Sprintf("list records of zone %s", zone.Name), err)
		}

		for _, r := range records {
			if (r.Type != "A" && r.Type != "AAAA") || r.Locked {
				continue
			}
			result = append(result, provider.Record{
				ID:       r.ID,
				ZoneID:   zone.ID,
				ZoneName: zone.Name,
				Name:     r.Name,
				Type:     r.Type,
				Content:  r.Content,
			})
		}
		if resultInfo == nil || page >= resultInfo.TotalPages {
			break
		}
		page++
	}

	p.metrics.IncDNSRequest("read", zone.ID, true)
	slog.Debug("Retrieved DNS records", "zone", zone.Name, "count", len(result), "duration", time.Since(start))
	return result, nil
}

// UpdateRecord patches the content of one record with an IP address.
func (p *CloudflareProvider) UpdateRecord(ctx context.Context, token, zoneID, recordID, content string) error {
	slog.Debug("Updating DNS record", "zone", zoneID, "record", recordID, "content", content)
	start := time.Now()

	ip, err := netip.ParseAddr(content)
	if err != nil {
		return &provider.Error{Op: "update record " + recordID, Err: err}
	}
	rr := libdns.Address{Name: "@", IP: ip}.RR()

	api, err := p.client(token)
	if err != nil {
		return err
	}

	params := cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    rr.Type,
		Content: rr.Data,
	}
	_, err = api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncDNSRequest("update", zoneID, false)
		return wrapError("update record "+recordID, err)
	}

	p.metrics.IncDNSRequest("update", zoneID, true)
	slog.Debug("Updated DNS record", "zone", zoneID, "record", recordID, "duration", time.Since(start))
	return nil
}

// RelativeName shortens a record name to its label within zone, "@" for the
// apex.
func RelativeName(record provider.Record) string {
	if record.ZoneName == "" {
		return record.Name
	}
	return libdns.RelativeName(record.Name, record.ZoneName)
}

type messageError interface {
	ErrorMessages() []string
}

func wrapError(op string, err error) error {
	perr := &provider.Error{Op: op, Err: err}
	var me messageError
	if errors.As(err, &me) {
		perr.Messages = me.ErrorMessages()
	}
	var cfErr *cloudflare.Error
	if errors.As(err, &cfErr) {
		perr.Status = cfErr.StatusCode
	}
	return perr
}
