package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/spf13/cobra"
)

func newInventoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Manage and reconcile the tracked records",
	}
	cmd.AddCommand(
		newBuildCommand(a),
		newAddCommand(a),
		newRemoveCommand(a),
		newShowCommand(a),
		newCheckCommand(a),
		newUpdateCommand(a),
		newPruneCommand(a),
		newCommitCommand(a),
		newWatchCommand(a),
	)
	return cmd
}

func newBuildCommand(a *app) *cobra.Command {
	var stdout, clean bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Interactively select the records to track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			zoneFilter, err := a.cfg.ZoneFilter()
			if err != nil {
				return err
			}
			recordFilter, err := a.cfg.RecordFilter()
			if err != nil {
				return err
			}
			snapshot, err := a.snapshot(ctx, a.newProvider(a.metrics))
			if err != nil {
				return err
			}

			scanner := a.scanner()
			defer scanner.Close()

			zones := filterZones(snapshot.Zones, zoneFilter)
			if len(zones) == 0 {
				return fmt.Errorf("no zones available, check the token permissions and zone filters")
			}
			zoneNames := make([]string, len(zones))
			for i, z := range zones {
				zoneNames[i] = z.Name
			}

			inv := inventory.New()
			for {
				idx, err := scanner.Select(ctx, "Select a zone, or press enter to finish", zoneNames)
				if err != nil {
					return err
				}
				if idx < 0 {
					break
				}
				zone := zones[idx]

				for {
					var candidates []provider.Record
					for _, r := range filterRecords(snapshot.RecordsInZone(zone.ID), recordFilter) {
						if !inv.Contains(zone.ID, r.ID) {
							candidates = append(candidates, r)
						}
					}
					if len(candidates) == 0 {
						fmt.Fprintf(a.out, "No more records to track in %s\n", zone.Name)
						break
					}
					names := make([]string, len(candidates))
					for i, r := range candidates {
						names[i] = fmt.Sprintf("%s (%s)", r.Name, r.Type)
					}
					idx, err := scanner.Select(ctx, "Select a record, or press enter to go back", names)
					if err != nil {
						return err
					}
					if idx < 0 {
						break
					}
					inv.Insert(zone.ID, candidates[idx].ID)
					fmt.Fprintf(a.out, "Tracking %s\n", candidates[idx].Name)
				}
			}

			if inv.IsEmpty() {
				fmt.Fprintln(a.out, "No records selected, inventory not saved")
				return nil
			}

			var annotator inventory.Annotator
			if !clean {
				annotator = inventory.SnapshotAnnotator{Snapshot: snapshot}
			}

			if stdout {
				data, err := inv.Marshal()
				if err != nil {
					return err
				}
				if annotator != nil {
					if annotated, err := annotator.Annotate(data); err == nil {
						data = annotated
					} else {
						slog.Warn("Failed to annotate inventory", "error", err)
					}
				}
				_, err = a.out.Write(data)
				return err
			}

			path := a.cfg.InventoryPath
			if _, err := os.Stat(path); err == nil && !a.cfg.Force {
				ok, err := scanner.Confirm(ctx, fmt.Sprintf("Overwrite existing inventory at %s?", path), false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "Inventory not saved")
					return nil
				}
			}
			if err := inv.Save(path, annotator); err != nil {
				a.metrics.IncInventoryWrite(false)
				return err
			}
			a.metrics.IncInventoryWrite(true)
			fmt.Fprintf(a.out, "Saved %d records to %s\n", inv.Len(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the inventory instead of saving it")
	cmd.Flags().BoolVar(&clean, "clean", false, "omit name comments")
	return cmd
}

func newAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <zone> <record>",
		Short: "Track a record, by name or ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := inventory.Load(a.cfg.InventoryPath)
			if errors.Is(err, inventory.ErrNotFound) {
				inv = inventory.New()
			} else if err != nil {
				return err
			}
			if !inv.Insert(args[0], args[1]) {
				fmt.Fprintf(a.out, "%s is already tracked in %s\n", args[1], args[0])
				return nil
			}
			if err := a.saveInventory(inv); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Tracking %s in %s\n", args[1], args[0])
			return nil
		},
	}
}

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <zone> <record>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a record",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := inventory.Load(a.cfg.InventoryPath)
			if err != nil {
				return err
			}
			if !inv.Remove(args[0], args[1]) {
				return fmt.Errorf("%s is not tracked in %s", args[1], args[0])
			}
			if err := a.saveInventory(inv); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the inventory",
		Long: `Print the inventory. Unless --clean is set and when a token is configured,
every zone and record is annotated with its name or ID from Cloudflare.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := inventory.Load(a.cfg.InventoryPath)
			if err != nil {
				return err
			}
			if clean || a.cfg.Token == "" {
				_, err := fmt.Fprintln(a.out, inv.String())
				return err
			}

			snapshot, err := a.snapshot(cmd.Context(), a.newProvider(a.metrics))
			if err != nil {
				return err
			}
			data, err := inv.Marshal()
			if err != nil {
				return err
			}
			annotated, err := inventory.SnapshotAnnotator{Snapshot: snapshot}.Annotate(data)
			if err != nil {
				slog.Warn("Failed to annotate inventory", "error", err)
				annotated = data
			}
			_, err = a.out.Write(annotated)
			return err
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "print without contacting Cloudflare")
	return cmd
}

func (a *app) saveInventory(inv *inventory.Inventory) error {
	if err := inv.Save(a.cfg.InventoryPath, nil); err != nil {
		a.metrics.IncInventoryWrite(false)
		return err
	}
	a.metrics.IncInventoryWrite(true)
	return nil
}
