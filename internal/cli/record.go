package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-go/internal/config"
	"github.com/mcoot/tictactoe-go/internal/dependencies/records"
	"github.com/mcoot/tictactoe-go/internal/model"
)

func newRecordCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record <game-id>",
		Short: "Show a game as the record service holds it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID := model.GameID(args[0])

			record, err := records.NewClient(baseURL, timeout).GetGame(cmd.Context(), gameID)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(RecordResult{
				GameID: string(gameID),
				Status: string(record.Status),
				Winner: string(record.Winner),
			})
			return nil
		},
	}

	v := config.NewViper()
	cmd.Flags().StringVar(&baseURL, "records-url", v.GetString("records.base_url"), "Record service base URL (env: TTT_RECORDS_BASE_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", v.GetDuration("records.timeout"), "Request timeout")

	return cmd
}
