package commands

import (
	"fmt"

	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var secretLength int

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generates a value for http.secret, the shared secret of the change check triggers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if secretLength < 16 {
			return fmt.Errorf("--length must be at least 16, got %d", secretLength)
		}
		secret, err := random.String(secretLength)
		if err != nil {
			return err
		}
		fmt.Println(secret)
		return nil
	},
}

func init() {
	secretCmd.Flags().IntVar(&secretLength, "length", 32, "Length of the generated secret.")
	rootCmd.AddCommand(secretCmd)
}
