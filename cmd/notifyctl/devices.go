package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/abytech-hub/notification-core/internal/client/session"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/spf13/cobra"
)

func newDevicesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List devices registered for push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			rc, err := session.RecipientFromToken(opts.token)
			if err != nil {
				return err
			}
			subs, err := s.Registry.List(cmd.Context(), rc)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tENCODING\tENDPOINT")
			for _, sub := range subs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sub.SubscriptionID, sub.Label, sub.ContentEncoding, sub.Endpoint)
			}
			return tw.Flush()
		},
	}
}

func newUnsubscribeAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe-all",
		Short: "Remove every push device of the token's recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			rc, err := session.RecipientFromToken(opts.token)
			if err != nil {
				return err
			}
			res, err := s.Registry.UnsubscribeAll(cmd.Context(), domain.UnsubscribeAllRequest{UserID: rc.ID, Type: rc.Type})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}
