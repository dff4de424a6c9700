package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zlnvch/notes/client"
)

var (
	loginProvider string
	loginCode     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	Long: `Sign in with an OAuth authorization code:

  notes login --provider github --code <code>

or store a token you already have:

  notes login --token <token>`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path, err := profilePath()
		if err != nil {
			fatal("Error locating profile", err)
		}
		stored, err := loadProfile(path)
		if err != nil {
			fatal("Error reading profile", err)
		}
		p := stored.resolve(serverFlag, "", "")

		switch {
		case tokenFlag != "":
			identity, err := client.IdentityFromToken(tokenFlag)
			if err != nil {
				fatal("Error reading token", err)
			}
			p.Token = tokenFlag
			p.Email = identity.Email
			p.Username = ""

		case loginProvider != "" && loginCode != "":
			ctx, cancel := commandContext()
			defer cancel()

			result, err := client.NewHTTPRemote(p.Server, "").Login(ctx, loginProvider, loginCode)
			if err != nil {
				fatal("Error signing in", err)
			}
			p.Token = result.Token
			p.Email = result.Email
			p.Username = result.Username

		default:
			fatal("Error signing in", errors.New("need --provider and --code, or --token"))
		}

		if err := saveProfile(path, p); err != nil {
			fatal("Error saving profile", err)
		}
		fmt.Printf("Signed in as %s\n", p.Email)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path, err := profilePath()
		if err != nil {
			fatal("Error locating profile", err)
		}
		p, err := loadProfile(path)
		if err != nil {
			fatal("Error reading profile", err)
		}
		p.Token = ""
		p.Email = ""
		p.Username = ""
		if err := saveProfile(path, p); err != nil {
			fatal("Error saving profile", err)
		}
		fmt.Println("Signed out")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	loginCmd.Flags().StringVar(&loginProvider, "provider", "", "OAuth provider (github or google)")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "OAuth authorization code")
}
