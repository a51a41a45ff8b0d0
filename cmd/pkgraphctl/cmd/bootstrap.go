package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mityayka1/pkgraph/internal/bootstrap"
)

var bootstrapOwnerName string

var bootstrapOwnerCmd = &cobra.Command{
	Use:   "bootstrap-owner",
	Short: "Create the single isOwner=true entity, if none exists yet",
	Run: func(cmd *cobra.Command, args []string) {
		if bootstrapOwnerName == "" {
			fatalf("bootstrap-owner: --name is required")
		}
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			fatalf("bootstrap-owner: %v", err)
		}
		defer st.Close()

		owner, err := bootstrap.SeedOwner(ctx, st, bootstrapOwnerName)
		if err != nil {
			fatalf("bootstrap-owner: %v", err)
		}
		successf("owner entity ready: %s (%s)", owner.Name, owner.ID)
	},
}

func init() {
	bootstrapOwnerCmd.Flags().StringVar(&bootstrapOwnerName, "name", "", "display name for the owner entity")
}
