package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check every linked account against its platform once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			accounts, err := newAccountService(ctx, cfg, db, nil)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PLATFORM\tACCOUNT\tUSERNAME\tSTATUS\tDETAIL")
			for _, st := range accounts.CheckAllStatuses(ctx) {
				detail := ""
				switch {
				case st.RateLimitReset != nil:
					detail = "resets " + st.RateLimitReset.Format(time.RFC3339)
				case st.Error != nil:
					detail = st.Error.Message
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", st.Platform, st.AccountID, st.Username, st.Status, detail)
			}
			return w.Flush()
		},
	}
}
