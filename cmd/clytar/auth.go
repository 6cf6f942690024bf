package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clytar/clytar-backend/internal/users/domain"
)

var (
	fullName string
	company  string
	jobTitle string
)

var signUpCmd = &cobra.Command{
	Use:   "signup <email> <password>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.client.SignUp(ctx, args[0], args[1], domain.Profile{
				FullName: fullName,
				Company:  company,
				JobTitle: jobTitle,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderUser(&s.User))
			return nil
		})
	},
}

var signInCmd = &cobra.Command{
	Use:   "signin <email> <password>",
	Short: "Sign in and store the session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.client.SignIn(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("signed in as "+s.User.Email))
			return nil
		})
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "End the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			if err := a.client.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("signed out"))
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderUser(&s.User))
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("session expires "+s.ExpiresAt.Local().Format("2006-01-02 15:04")))
			return nil
		})
	},
}

func init() {
	signUpCmd.Flags().StringVar(&fullName, "name", "", "full name")
	signUpCmd.Flags().StringVar(&company, "company", "", "company")
	signUpCmd.Flags().StringVar(&jobTitle, "title", "", "job title")

	rootCmd.AddCommand(signUpCmd, signInCmd, signOutCmd, whoamiCmd)
}
