package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clytar/clytar-backend/internal/workflow"
)

var (
	contentType string
	objective   string
	audience    string
	brandNotes  string

	draftFile string

	schedPlatform string
	schedCategory string
	schedDate     string
	schedTime     string
	schedAlso     []string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Work on content projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Start a project; with --objective and --audience the brief is submitted too",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			p, err := a.Engine.CreateProject(ctx, s.User.ID, workflow.CreateInput{
				Title:       args[0],
				ContentType: contentType,
				Objective:   objective,
				Audience:    audience,
				BrandNotes:  brandNotes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProject(p))
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			items, err := a.Engine.List(ctx, s.User.ID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no projects yet"))
			}
			for i := range items {
				fmt.Fprintln(cmd.OutOrStdout(), renderProjectLine(&items[i]))
			}
			return nil
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			p, err := a.Engine.Get(ctx, s.User.ID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProject(p))
			return nil
		})
	},
}

var projectAdvanceCmd = &cobra.Command{
	Use:   "advance <id>",
	Short: "Run the next stage (insights, then the draft)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("generating..."))
			p, err := a.Engine.Advance(ctx, s.User.ID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProject(p))
			return nil
		})
	},
}

var projectVaryCmd = &cobra.Command{
	Use:       "vary <id> <emotional|data_driven|concise>",
	Short:     "Rewrite the draft's headline",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"emotional", "data_driven", "concise"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			p, err := a.Engine.RequestVariation(ctx, s.User.ID, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProject(p))
			return nil
		})
	},
}

var projectDraftCmd = &cobra.Command{
	Use:   "draft <id>",
	Short: "Replace the draft with the contents of --file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readDraft(cmd.InOrStdin(), draftFile)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			p, err := a.Engine.UpdateDraft(ctx, s.User.ID, args[0], text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("draft saved (v%d)", p.Version)))
			return nil
		})
	},
}

var projectScheduleCmd = &cobra.Command{
	Use:   "schedule <id>",
	Short: "Schedule the final draft for publishing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *cliApp) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			p, err := a.Engine.Schedule(ctx, s.User.ID, args[0], workflow.ScheduleInput{
				Platform:            schedPlatform,
				Category:            schedCategory,
				Date:                schedDate,
				Time:                schedTime,
				AdditionalPlatforms: schedAlso,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProject(p))
			return nil
		})
	},
}

func readDraft(stdin io.Reader, path string) (string, error) {
	switch path {
	case "":
		return "", fmt.Errorf("--file is required")
	case "-":
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading draft: %w", err)
	}
	return string(b), nil
}

func init() {
	f := projectCreateCmd.Flags()
	f.StringVar(&contentType, "type", "blog", "content type: blog, social or email")
	f.StringVar(&objective, "objective", "", "what the content should achieve")
	f.StringVar(&audience, "audience", "", "who it is for")
	f.StringVar(&brandNotes, "brand", "", "voice and style notes")

	projectDraftCmd.Flags().StringVarP(&draftFile, "file", "f", "", "markdown file, or - for stdin")

	f = projectScheduleCmd.Flags()
	f.StringVar(&schedPlatform, "platform", "", "website, linkedin, medium or twitter")
	f.StringVar(&schedCategory, "category", "", "product, industry, howto or case-study")
	f.StringVar(&schedDate, "date", "", "YYYY-MM-DD (UTC)")
	f.StringVar(&schedTime, "time", "", "HH:MM (UTC), or now")
	f.StringSliceVar(&schedAlso, "also", nil, "additional platforms")

	projectCmd.AddCommand(
		projectCreateCmd,
		projectListCmd,
		projectShowCmd,
		projectAdvanceCmd,
		projectVaryCmd,
		projectDraftCmd,
		projectScheduleCmd,
	)
	rootCmd.AddCommand(projectCmd)
}
