package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/KairamCabral/terravik-sub002/internal/cache"
	"github.com/KairamCabral/terravik-sub002/internal/config"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/logging"
	"github.com/KairamCabral/terravik-sub002/internal/shipping"
)

type shippingOptions struct {
	cep      string
	subtotal string
	weight   float64
}

func newShippingCmd(root *rootOptions) *cobra.Command {
	opts := &shippingOptions{}
	cmd := &cobra.Command{
		Use:   "shipping",
		Short: "Look up a CEP and quote shipping options",
		Long: `Resolve the CEP against the configured lookup service (CEP_BASE_URL) and
print the shipping options and free shipping progress for the given cart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subtotal, err := decimal.NewFromString(opts.subtotal)
			if err != nil {
				return fmt.Errorf("invalid subtotal %q: %w", opts.subtotal, err)
			}
			if subtotal.IsNegative() || opts.weight < 0 {
				return fmt.Errorf("subtotal and weight must not be negative")
			}
			if _, ok := shipping.CleanCEP(opts.cep); !ok {
				return fmt.Errorf("invalid cep %q", opts.cep)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := shipping.NewCEPClient(shipping.CEPClientConfig{
				BaseURL: cfg.CEPBaseURL,
				Timeout: cfg.CEPTimeout(),
				Cache:   cache.NoopAddressCache{},
				Logger:  logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr()),
			})

			address := client.FetchAddressByCEP(cmd.Context(), opts.cep)
			return root.render(cmd.OutOrStdout(), domain.ShippingQuoteResponse{
				Address:      address,
				Options:      shipping.CalculateShipping(address, subtotal, opts.weight),
				FreeShipping: shipping.CalculateRemainingForFreeShipping(subtotal),
			})
		},
	}

	cmd.Flags().StringVar(&opts.cep, "cep", "", "destination CEP")
	cmd.Flags().StringVar(&opts.subtotal, "subtotal", "0", "cart subtotal in BRL")
	cmd.Flags().Float64Var(&opts.weight, "weight", 0, "cart weight in kg")
	_ = cmd.MarkFlagRequired("cep")
	return cmd
}
