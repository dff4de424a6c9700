package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	editTitle      string
	editText       string
	editImage      string
	editAudio      string
	editTranscript string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note; only the given fields change",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		s := openSession(ctx)
		if err := s.sync.Open(args[0]); err != nil {
			fatal("Error opening note", err)
		}
		note, _ := s.sync.View().Selected()

		flags := cmd.Flags()
		changed := false
		for _, f := range []struct {
			name  string
			value string
			field *string
		}{
			{"title", editTitle, &note.Title},
			{"text", editText, &note.TextContent},
			{"image", editImage, &note.ImageFile},
			{"audio", editAudio, &note.AudioFile},
			{"transcript", editTranscript, &note.AudioTranscript},
		} {
			if flags.Changed(f.name) {
				*f.field = f.value
				changed = true
			}
		}
		if !changed {
			fatal("Error editing note", errors.New("nothing to change"))
		}

		updated, err := s.sync.Update(ctx, note)
		if err != nil {
			fatal("Error editing note", err)
		}
		s.sync.Close()
		printNoteDetail(os.Stdout, updated)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVar(&editText, "text", "", "New body")
	editCmd.Flags().StringVar(&editImage, "image", "", "New image URL (empty to remove)")
	editCmd.Flags().StringVar(&editAudio, "audio", "", "New audio URL (empty to remove)")
	editCmd.Flags().StringVar(&editTranscript, "transcript", "", "New transcript")
}
