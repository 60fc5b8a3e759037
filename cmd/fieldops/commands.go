package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/render"
	"github.com/miradorstack/fieldops/internal/repo"
	"github.com/miradorstack/fieldops/internal/utils"
)

// withApp builds the app and renderer, runs fn and releases resources.
func withApp(cmd *cobra.Command, state *cliState, fn func(ctx context.Context, a *app, r render.Renderer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := render.Select(state.cfg.Render.Mode, cmd.OutOrStdout(), state.cfg.Render.Width)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, state.cfg, state.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a, r)
}

type triageFlags struct {
	start    string
	end      string
	location string
	category string
	risk     string
	all      bool
}

func (f triageFlags) filter() (models.FaultFilter, error) {
	filter := models.FaultFilter{AllTime: f.all, Location: f.location}
	if f.start != "" {
		t, err := utils.ParseDate(f.start, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("--start: %w", err)
		}
		filter.Start = t
	}
	if f.end != "" {
		t, err := utils.ParseDate(f.end, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("--end: %w", err)
		}
		filter.End = t
	}
	if f.category != "" {
		filter.Category = models.ParseCategory(f.category)
	}
	if f.risk != "" {
		level, ok := models.ParseRiskLevel(f.risk)
		if !ok {
			return filter, fmt.Errorf("--risk: unknown level %q", f.risk)
		}
		filter.Risk = level
	}
	return filter, nil
}

func newTriageCmd(state *cliState) *cobra.Command {
	var flags triageFlags
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Render the manager dashboard in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, state, func(ctx context.Context, a *app, r render.Renderer) error {
				dashboard, err := a.triage.Dashboard(ctx, filter)
				if err != nil {
					return err
				}
				return r.Dashboard(dashboard)
			})
		},
	}
	cmd.Flags().StringVar(&flags.start, "start", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.end, "end", "", "Last day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.location, "location", "", "Only faults at this location")
	cmd.Flags().StringVar(&flags.category, "category", "", "Only faults of this category")
	cmd.Flags().StringVar(&flags.risk, "risk", "", "Only faults at this risk level")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Ignore the default seven-day window")
	return cmd
}

func newProcedureCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "procedure <fault-id>",
		Short: "Show the repair procedure for a fault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, state, func(ctx context.Context, a *app, r render.Renderer) error {
				result, err := a.assistant.Procedure(ctx, args[0])
				if err != nil {
					return err
				}
				return r.Procedure(result.Fault.Fault.ID, result.Procedure)
			})
		},
	}
}

func newAskCmd(state *cliState) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the repair assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, state, func(ctx context.Context, a *app, r render.Renderer) error {
				conv, err := a.assistant.Ask(ctx, session, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return r.Conversation(conv.History)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Continue an existing session (needs a shared cache backend)")
	return cmd
}

func newSearchCmd(state *cliState) *cobra.Command {
	var code, equipment string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search procedure documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, state, func(ctx context.Context, a *app, r render.Renderer) error {
				q := repo.SearchQuery{Text: strings.Join(args, " "), FaultCode: code, EquipmentType: equipment}
				return r.SearchResults(q.Text, a.assistant.Search(ctx, q))
			})
		},
	}
	cmd.Flags().StringVar(&code, "fault-code", "", "Boost documents listing this fault code")
	cmd.Flags().StringVar(&equipment, "equipment", "", "Boost documents for this equipment type")
	return cmd
}
