package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mtessier/reactsync/internal/chat"
	"github.com/mtessier/reactsync/internal/config"
	"github.com/mtessier/reactsync/internal/engine"
	"github.com/mtessier/reactsync/internal/gateway"
	"github.com/mtessier/reactsync/internal/store"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <server> <channel> <message>",
		Short: "Reconcile existing reactions on a message",
		Long: `Sweep a message's existing reactions and grant the bound role to
every reactor who is missing it. A one-time convergence pass for
reactions that arrived while the engine was offline.

Messages in a link group cannot be checked: the presence of a reaction
cannot disambiguate which of several mutually exclusive roles to grant.

Example:
  reactsync check s-123 c-456 m-789`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := chat.MessageRef{
				Server:  chat.ServerID(args[0]),
				Channel: chat.ChannelID(args[1]),
				Message: chat.MessageID(args[2]),
			}
			return runCheck(rootOpts, cmd, ref)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, cmd *cobra.Command, ref chat.MessageRef) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	client := gateway.NewClient(cfg.APIURL, cfg.Token)
	eng := engine.New(engine.Deps{
		Members:   client,
		Reactions: client,
		Resolver:  client,
		Marker:    client,
		Persister: st,
		Self:      chat.MemberID(cfg.SelfID),
	}, engine.WithRate(cfg.MaxProcessedPerSecond))

	ctx := cmd.Context()
	if err := eng.Restore(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to restore configuration", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	report, err := eng.Reconcile(ctx, ref, func(p engine.Progress) {
		f.VerboseLog("checked %d/%d reactors across %d reactions", p.Checked, p.Total, p.Reactions)
	})
	if err != nil {
		if engine.IsCannotReconcileLinked(err) {
			return WrapExitError(ExitFailure, "message is part of a link group", err)
		}
		return WrapExitError(ExitFailure, "reconcile failed", err)
	}

	if opts.Format == "json" {
		return f.Success(struct {
			Checked int `json:"checked"`
			Granted int `json:"granted"`
			Skipped int `json:"skipped"`
		}{report.Checked, report.Granted, report.Skipped})
	}
	return f.Success(fmt.Sprintf("checked %d reactors: %d roles granted, %d skipped",
		report.Checked, report.Granted, report.Skipped))
}
