package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mityayka1/pkgraph/internal/approval"
	"github.com/mityayka1/pkgraph/internal/commitment"
)

var rejectRetentionDays int

var approveCmd = &cobra.Command{
	Use:   "approve <pending-approval-id>",
	Short: "Approve a pending extraction from the terminal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			fatalf("approve: invalid id: %v", err)
		}
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			fatalf("approve: %v", err)
		}
		defer st.Close()

		// ScheduleFirstReminder never publishes through Producer, so a nil
		// one is safe for this terminal-only approve path.
		if err := approval.New(st, commitment.New(st, nil)).Approve(ctx, id); err != nil {
			fatalf("approve: %v", err)
		}
		successf("approved")
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <pending-approval-id>",
	Short: "Reject a pending extraction from the terminal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			fatalf("reject: invalid id: %v", err)
		}
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			fatalf("reject: %v", err)
		}
		defer st.Close()

		if err := approval.New(st, nil).Reject(ctx, id, rejectRetentionDays); err != nil {
			fatalf("reject: %v", err)
		}
		successf("rejected")
	},
}

func init() {
	rejectCmd.Flags().IntVar(&rejectRetentionDays, "retention-days", approval.DefaultRetentionDays, "days to retain the rejected row before garbage collection")
}
