package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mityayka1/pkgraph/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the data-quality audit once and print the report",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			fatalf("audit: %v", err)
		}
		defer st.Close()

		report, err := audit.New(st).Run(ctx)
		if err != nil {
			fatalf("audit: %v", err)
		}
		fmt.Printf("metrics: %v\n", report.Metrics)
		fmt.Printf("issues found: %d\n", len(report.Issues))
		fmt.Printf("resolutions applied: %d\n", len(report.Resolutions))
	},
}
