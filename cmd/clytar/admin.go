package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	notifdomain "github.com/clytar/clytar-backend/internal/notifications/domain"
	"github.com/clytar/clytar-backend/internal/users/domain"
)

var notifyTo string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin tools",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			users, err := a.Users.ListUsers(ctx, &s.User)
			if err != nil {
				return err
			}
			for i := range users {
				fmt.Fprintln(cmd.OutOrStdout(), renderUserRow(&users[i]))
			}
			stats, err := a.Users.Stats(ctx, &s.User)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("%d users, %d premium, %d admins",
				stats.Users, stats.Premium, stats.Admins)))
			return nil
		})
	},
}

var adminPlanCmd = &cobra.Command{
	Use:   "plan <user-id> <free|premium>",
	Short: "Change a user's plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			u, err := a.Users.SetPlan(ctx, &s.User, args[0], domain.Plan(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderUser(u))
			return nil
		})
	},
}

var adminNotifyCmd = &cobra.Command{
	Use:   "notify <message...>",
	Short: "Send a notification to one user (--to) or everyone",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			n, err := a.Notifications.Broadcast(ctx, &s.User, notifyTo, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("sent "+n.ID+" to "+n.RecipientID))
			return nil
		})
	},
}

func init() {
	adminNotifyCmd.Flags().StringVar(&notifyTo, "to", notifdomain.RecipientAll, "recipient user id")

	adminCmd.AddCommand(adminUsersCmd, adminPlanCmd, adminNotifyCmd)
	rootCmd.AddCommand(adminCmd)
}
