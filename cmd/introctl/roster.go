package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CaputoDavide93/new-starters-meetup/internal/config"
	"github.com/CaputoDavide93/new-starters-meetup/internal/directory"
	"github.com/CaputoDavide93/new-starters-meetup/internal/logger"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
	"github.com/CaputoDavide93/new-starters-meetup/internal/weights"
	"github.com/CaputoDavide93/new-starters-meetup/introservice"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the mode's roster from the directory group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModeDeps(cmd.Context(), func(ctx context.Context, st store.Store, dir directory.Directory, groupID string) error {
				members, err := dir.GroupMembers(ctx, groupID)
				if err != nil {
					return errors.Wrap(err, "fetch group members")
				}
				w := weights.New(st, modeFlag, logger.New("introctl"))
				removed, err := w.SyncRoster(ctx, members)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %d members, removed %d departed\n", len(members), removed)
				return nil
			})
		},
	}
}

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove participants who left the directory group",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return withModeDeps(cmd.Context(), func(ctx context.Context, st store.Store, dir directory.Directory, groupID string) error {
				return runCleanup(ctx, st, dir, groupID, dryRun, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().Bool("dry-run", false, "report departed participants without deleting")
	return cmd
}

// runCleanup diffs the stored participants against the directory group and
// deletes the ones who left.
func runCleanup(ctx context.Context, st store.Store, dir directory.Directory, groupID string, dryRun bool, out io.Writer) error {
	members, err := dir.GroupMembers(ctx, groupID)
	if err != nil {
		return errors.Wrap(err, "fetch group members")
	}
	current := make(map[string]struct{}, len(members))
	for _, m := range members {
		current[strings.ToLower(m.Email)] = struct{}{}
	}

	stored, err := st.Participants().List(ctx, modeFlag)
	if err != nil {
		return errors.Wrap(err, "list participants")
	}

	departed := 0
	for _, p := range stored {
		if _, ok := current[p.Email]; ok {
			continue
		}
		departed++
		if dryRun {
			fmt.Fprintf(out, "would remove %s (weight %d)\n", p.Email, p.Weight)
			continue
		}
		if err := st.Participants().Delete(ctx, modeFlag, p.Email); err != nil {
			return errors.Wrapf(err, "delete %s", p.Email)
		}
		fmt.Fprintf(out, "removed %s\n", p.Email)
	}
	fmt.Fprintf(out, "%d departed of %d stored\n", departed, len(stored))
	return nil
}

// withModeDeps loads configuration and hands the callback an open store and
// the mode's directory client.
func withModeDeps(ctx context.Context, fn func(context.Context, store.Store, directory.Directory, string) error) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	mc, ok := cfg.Modes()[modeFlag]
	if !ok {
		return errors.Errorf("unknown mode %q", modeFlag)
	}

	st, err := introservice.NewStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	log := logger.New("introctl")
	dir := directory.NewGraph(ctx, mc.TenantID, mc.ClientID, mc.ClientSecret, log)
	return fn(ctx, st, dir, mc.GroupID)
}
