package cli

import (
	"fmt"
	"io"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/provider/cloudflare"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	var zone, record string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List editable zones and their address records",
		Long: `List the zones the token may edit and their A and AAAA records.

Results are narrowed by the include and ignore filters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zones, records, err := a.listed(cmd, "", "")
			if err != nil {
				return err
			}
			for _, z := range zones {
				printZone(a.out, z)
				for _, r := range records {
					if r.ZoneID == z.ID {
						fmt.Fprint(a.out, "  ")
						printRecord(a.out, r)
					}
				}
			}
			return nil
		},
	}

	zonesCmd := &cobra.Command{
		Use:   "zones",
		Short: "List editable zones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zones, _, err := a.listed(cmd, zone, "")
			if err != nil {
				return err
			}
			for _, z := range zones {
				printZone(a.out, z)
			}
			return nil
		},
	}
	zonesCmd.Flags().StringVarP(&zone, "zone", "z", "", "show a single zone by name or ID")

	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "List address records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, records, err := a.listed(cmd, zone, record)
			if err != nil {
				return err
			}
			for _, r := range records {
				printRecord(a.out, r)
			}
			return nil
		},
	}
	recordsCmd.Flags().StringVarP(&zone, "zone", "z", "", "only records of this zone, by name or ID")
	recordsCmd.Flags().StringVarP(&record, "record", "r", "", "show a single record by name or ID")

	cmd.AddCommand(zonesCmd, recordsCmd)
	return cmd
}

// listed fetches a snapshot and returns the zones and records that pass the
// configured filters. A zone or record fingerprint narrows the listing to
// that entity and bypasses the filters.
func (a *app) listed(cmd *cobra.Command, zoneFP, recordFP string) ([]provider.Zone, []provider.Record, error) {
	zoneFilter, err := a.cfg.ZoneFilter()
	if err != nil {
		return nil, nil, err
	}
	recordFilter, err := a.cfg.RecordFilter()
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := a.snapshot(cmd.Context(), a.newProvider(a.metrics))
	if err != nil {
		return nil, nil, err
	}

	zones := snapshot.Zones
	if zoneFP != "" {
		z, ok := snapshot.FindZone(zoneFP)
		if !ok {
			return nil, nil, fmt.Errorf("zone %q not found", zoneFP)
		}
		zones = []provider.Zone{z}
	} else {
		zones = filterZones(zones, zoneFilter)
	}

	var records []provider.Record
	for _, z := range zones {
		for _, r := range snapshot.RecordsInZone(z.ID) {
			switch {
			case recordFP != "":
				if r.Matches(recordFP) {
					records = append(records, r)
				}
			case recordFilter.Keep(r.ID, r.Name):
				records = append(records, r)
			}
		}
	}
	if recordFP != "" && len(records) == 0 {
		return nil, nil, fmt.Errorf("record %q not found", recordFP)
	}
	return zones, records, nil
}

func filterZones(zones []provider.Zone, f config.Filter) []provider.Zone {
	var out []provider.Zone
	for _, z := range zones {
		if f.Keep(z.ID, z.Name) {
			out = append(out, z)
		}
	}
	return out
}

func filterRecords(records []provider.Record, f config.Filter) []provider.Record {
	var out []provider.Record
	for _, r := range records {
		if f.Keep(r.ID, r.Name) {
			out = append(out, r)
		}
	}
	return out
}

func printZone(w io.Writer, z provider.Zone) {
	fmt.Fprintf(w, "%s (%s)\n", z.Name, z.ID)
}

func printRecord(w io.Writer, r provider.Record) {
	fmt.Fprintf(w, "%s %s %s (%s)\n", cloudflare.RelativeName(r), r.Type, r.Content, r.ID)
}
