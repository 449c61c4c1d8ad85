package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "opexio",
	Short: "Logistics back-office for shipments, delivery confirmations and invoices",
	Long: `A service that manages shipment documents, stamps delivery PDFs with
verification QR codes, serves a public delivery-confirmation portal,
and tracks customer invoices.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
