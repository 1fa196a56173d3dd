// Command vapidkeys prints a fresh VAPID key pair in .env form.
package main

import (
	"fmt"
	"os"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:          "vapidkeys",
		Short:        "Generate a VAPID key pair for web push",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "VAPID_PRIVATE_KEY=%s\n", priv)
			if subject != "" {
				fmt.Fprintf(out, "VAPID_SUBJECT=%s\n", subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "contact for push services, e.g. mailto:ops@example.com")
	return cmd
}
