// wardenctl is the operator's offline tool for the evidence subsystem:
// verify custody chains, build export manifests, and preview or run
// retention purges against a console data directory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lucid-vigil/warden/pkg/custody"
	"github.com/lucid-vigil/warden/pkg/manifest"
	"github.com/lucid-vigil/warden/pkg/purge"
	"github.com/lucid-vigil/warden/pkg/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "wardenctl",
		Short:         "Operator tooling for the warden evidence subsystem",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(verifyCmd(), manifestCmd(), purgeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func verifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a custody chain exported as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var chain []custody.Event
			if err := json.Unmarshal(raw, &chain); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if !custody.Verify(chain) {
				fmt.Printf("INVALID: chain of %d events failed verification\n", len(chain))
				os.Exit(1)
			}
			fmt.Printf("OK: chain of %d events verified\n", len(chain))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the chain JSON (array of custody events)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func manifestCmd() *cobra.Command {
	var (
		parentID    string
		incidentID  string
		exportedBy  string
		generatedAt string
		recordsFile string
		custodyFile string
		auditsFile  string
	)
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Build a forensic export manifest from collection files",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readDocs(recordsFile)
			if err != nil {
				return err
			}
			custodyDocs, err := readDocs(custodyFile)
			if err != nil {
				return err
			}
			audits, err := readDocs(auditsFile)
			if err != nil {
				return err
			}

			var at time.Time
			if generatedAt != "" {
				at, err = time.Parse(time.RFC3339, generatedAt)
				if err != nil {
					return fmt.Errorf("parse generated-at: %w", err)
				}
			}

			m, err := manifest.Build(parentID, incidentID, exportedBy, records, custodyDocs, audits, at)
			if err != nil {
				return err
			}
			return printJSON(m)
		},
	}
	cmd.Flags().StringVar(&parentID, "parent", "", "parent/account id")
	cmd.Flags().StringVar(&incidentID, "incident", "", "incident id")
	cmd.Flags().StringVar(&exportedBy, "exported-by", "", "exporter identity")
	cmd.Flags().StringVar(&generatedAt, "generated-at", "", "generation time (RFC3339, default now)")
	cmd.Flags().StringVar(&recordsFile, "records", "", "evidence records JSON file")
	cmd.Flags().StringVar(&custodyFile, "custody", "", "custody events JSON file")
	cmd.Flags().StringVar(&auditsFile, "audits", "", "command audits JSON file")
	cmd.MarkFlagRequired("parent")
	cmd.MarkFlagRequired("incident")
	return cmd
}

func purgeCmd() *cobra.Command {
	var (
		dataDir       string
		accountID     string
		retentionDays int
		keepCritical  bool
		holds         []string
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Preview or run retention purges",
	}
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "console data directory")
	cmd.PersistentFlags().StringVar(&accountID, "account", "", "account id")
	cmd.PersistentFlags().IntVar(&retentionDays, "retention-days", 30, "retention window in days")
	cmd.PersistentFlags().BoolVar(&keepCritical, "keep-critical", true, "exempt CRITICAL severity records")
	cmd.PersistentFlags().StringSliceVar(&holds, "hold", nil, "record ids under legal hold")
	cmd.MarkPersistentFlagRequired("account")

	buildPlan := func(c *cobra.Command) (*store.Store, purge.Plan, error) {
		st, err := store.New(dataDir, zerolog.Nop())
		if err != nil {
			return nil, purge.Plan{}, err
		}
		records, err := st.ListRecords(c.Context(), accountID)
		if err != nil {
			return nil, purge.Plan{}, err
		}
		policy := purge.Policy{RetentionDays: retentionDays, KeepCritical: keepCritical, LegalHoldIDs: holds}
		plan, err := purge.BuildPlan(records, policy, time.Now().UTC())
		return st, plan, err
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what the retention policy would delete",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, plan, err := buildPlan(cmd)
			if err != nil {
				return err
			}
			return printJSON(plan)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the purge plan (destructive, requires --yes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete without --yes; run 'purge plan' first")
			}
			st, plan, err := buildPlan(cmd)
			if err != nil {
				return err
			}
			res, err := purge.ExecutePlan(cmd.Context(), plan, func(ctx context.Context, id string) error {
				return st.DeleteRecord(ctx, accountID, id)
			}, zerolog.Nop())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	runCmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	cmd.AddCommand(planCmd, runCmd)
	return cmd
}

func readDocs(path string) ([]map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []map[string]interface{}
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return docs, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
