// cmd/queue-manager/import.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"exam-queue/internal/importer"
	"exam-queue/internal/lookup"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Validate a CSV of students and add them to the queues",
	Long: `import validates every row of the file (header id,name,specialty,committeeId) ` +
		`against the current queues. Any bad row aborts the whole import. Accepted ` +
		`students are sent to the exam API when one is configured and written to the ` +
		`shared cache, so running displays pick them up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		semicolon, _ := cmd.Flags().GetBool("semicolon")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		c, err := build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer c.close()

		if _, err := c.syncer.Bootstrap(ctx); err != nil {
			return err
		}
		facade := lookup.New(c.store, cfg.Sync.PerStudent(), cfg.Sync.DisplayLimit)

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		opts := importer.Options{
			KnownIDs:   facade.StudentIDs(),
			Committees: facade.CommitteeIDs(),
		}
		if semicolon {
			opts.Comma = ';'
		}
		candidates, err := importer.Parse(f, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if dryRun {
			fmt.Fprintf(out, "%d students valid, nothing imported (dry run)\n", len(candidates))
			return nil
		}

		result, err := c.syncer.Import(ctx, candidates)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "imported %d students, %d dropped as duplicates\n", len(result.Accepted), result.Dropped)
		for _, s := range result.Accepted {
			fmt.Fprintf(out, "  %d\t%s\tcommittee %d\tposition %d\n", s.ID, s.Name, s.CommitteeID, s.QueuePosition)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "validate the file without importing")
	importCmd.Flags().Bool("semicolon", false, "the file uses ';' as the field separator")
	rootCmd.AddCommand(importCmd)
}
