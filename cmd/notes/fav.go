package main

import (
	"os"

	"github.com/spf13/cobra"
)

var favCmd = &cobra.Command{
	Use:   "fav <id>",
	Short: "Toggle a note's favourite flag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		s := openSession(ctx)

		note, err := s.sync.ToggleFavourite(ctx, args[0])
		if err != nil {
			fatal("Error updating note", err)
		}
		printNote(os.Stdout, note)
	},
}

func init() {
	rootCmd.AddCommand(favCmd)
}
