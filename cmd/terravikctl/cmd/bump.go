package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KairamCabral/terravik-sub002/internal/bump"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

func newBumpCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bump [product-id...]",
		Short: "Show the order bump offered for a cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			offer := bump.NewEngine(nil).GetSmartBumpProduct(args)
			return root.render(cmd.OutOrStdout(), domain.OrderBumpResponse{Bump: offer})
		},
	}
}
