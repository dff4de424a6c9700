package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		s := openSession(ctx)

		if err := s.sync.Delete(ctx, args[0]); err != nil {
			fatal("Error deleting note", err)
		}
		fmt.Printf("Deleted note %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
