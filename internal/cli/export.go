package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mtessier/reactsync/internal/config"
	"github.com/mtessier/reactsync/internal/engine"
	"github.com/mtessier/reactsync/internal/store"
)

// exportDoc is the yaml shape of an exported configuration.
type exportDoc struct {
	Bindings []exportBinding `yaml:"bindings"`
	Links    []exportLink    `yaml:"links"`
}

type exportBinding struct {
	Server  string `yaml:"server"`
	Channel string `yaml:"channel"`
	Message string `yaml:"message"`
	Symbol  string `yaml:"symbol"`
	Role    string `yaml:"role"`
}

type exportLink struct {
	Server   string          `yaml:"server"`
	Group    string          `yaml:"group"`
	Messages []exportMessage `yaml:"messages"`
}

type exportMessage struct {
	Channel string `yaml:"channel"`
	Message string `yaml:"message"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored configuration as yaml",
		Long: `Export every binding and link group from the configuration database
as yaml, in stable sorted order. Useful for backups and for diffing
configuration between environments.

Example:
  reactsync export --config ./reactsync.yaml > backup.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd)
		},
	}
	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	snap, err := st.LoadSnapshot(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}
		return f.Success(snapshotDoc(snap))
	}

	data, err := yaml.Marshal(snapshotDoc(snap))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode configuration", err)
	}
	fmt.Fprint(out, string(data))
	return nil
}

// snapshotDoc converts a snapshot into the export document. Snapshot
// records are already sorted, so the document is deterministic.
func snapshotDoc(snap engine.Snapshot) exportDoc {
	doc := exportDoc{
		Bindings: []exportBinding{},
		Links:    []exportLink{},
	}
	for _, rec := range snap.Bindings {
		doc.Bindings = append(doc.Bindings, exportBinding{
			Server:  string(rec.Ref.Server),
			Channel: string(rec.Ref.Channel),
			Message: string(rec.Ref.Message),
			Symbol:  string(rec.Symbol),
			Role:    string(rec.Role),
		})
	}
	for _, rec := range snap.Links {
		link := exportLink{
			Server: string(rec.Server),
			Group:  rec.Name,
		}
		for _, ref := range rec.Messages {
			link.Messages = append(link.Messages, exportMessage{
				Channel: string(ref.Channel),
				Message: string(ref.Message),
			})
		}
		doc.Links = append(doc.Links, link)
	}
	return doc
}
