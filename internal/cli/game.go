package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newGameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "game <game-id>",
		Short: "Show a game's grid, status and players",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result GameState

			if err := client.Get(cmd.Context(), "/api/v1/games/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
