package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zlnvch/notes/models"
)

var (
	createTitle      string
	createText       string
	createImage      string
	createAudio      string
	createTranscript string
	createFavourite  bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		s := openSession(ctx)

		note, err := s.sync.Create(ctx, models.Note{
			Title:           createTitle,
			TextContent:     createText,
			ImageFile:       createImage,
			AudioFile:       createAudio,
			AudioTranscript: createTranscript,
			Favourite:       createFavourite,
		})
		if err != nil {
			fatal("Error creating note", err)
		}

		fmt.Printf("Created note %s\n", note.Id)
		printNote(os.Stdout, note)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createTitle, "title", "", "Note title")
	createCmd.Flags().StringVar(&createText, "text", "", "Note body")
	createCmd.Flags().StringVar(&createImage, "image", "", "Image URL")
	createCmd.Flags().StringVar(&createAudio, "audio", "", "Audio URL")
	createCmd.Flags().StringVar(&createTranscript, "transcript", "", "Transcript of the audio")
	createCmd.Flags().BoolVar(&createFavourite, "favourite", false, "Mark as favourite")
}
