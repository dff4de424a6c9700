package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zlnvch/notes/client"
	"github.com/zlnvch/notes/models"
)

var (
	listJSON       bool
	listFavourites bool
	listSort       string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		s := openSession(ctx)

		switch listSort {
		case "":
		case "asc":
			s.sync.SortBy(client.Ascending)
		case "desc":
			s.sync.SortBy(client.Descending)
		default:
			fatal("Error listing notes", errors.New(`--sort must be "asc" or "desc"`))
		}

		// Filter
		var filtered []models.Note
		for _, note := range s.sync.View().Notes {
			if listFavourites && !note.Favourite {
				continue
			}
			filtered = append(filtered, note)
		}

		if listJSON {
			if filtered == nil {
				filtered = []models.Note{}
			}
			if err := printJSON(os.Stdout, filtered); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		if len(filtered) == 0 {
			fmt.Println("No notes yet")
			return
		}
		for _, note := range filtered {
			printNote(os.Stdout, note)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one note in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		s := openSession(ctx)
		if err := s.sync.Open(args[0]); err != nil {
			fatal("Error opening note", err)
		}
		note, _ := s.sync.View().Selected()
		printNoteDetail(os.Stdout, note)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVar(&listFavourites, "favourites", false, "Only list favourite notes")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Order by creation time: asc or desc")
}
