package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"restosite/sections"
)

var (
	remoteServer string
	remoteToken  string
	remoteTenant string
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Edit a restaurant's sections through the sync API",
	Long: `Edit the section list of a restaurant on a running server. Every command
fetches the current list, applies the change and saves it back; a change made
elsewhere in between is reported as a conflict.

Examples:
  restosite sections list --server https://restosite.app --token $TOKEN --tenant 42
  restosite sections add Menu "Our Menu"
  restosite sections move section-1f3a 2
  restosite sections reset`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if remoteToken == "" {
			remoteToken = os.Getenv("RESTOSITE_TOKEN")
		}
		if remoteTenant == "" {
			remoteTenant = os.Getenv("RESTOSITE_TENANT")
		}
		if remoteToken == "" || remoteTenant == "" {
			return fmt.Errorf("--token and --tenant are required")
		}
		return nil
	},
}

func remoteManager() *sections.Manager {
	return sections.NewManager(sections.NewClient(remoteServer, remoteToken))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func printSnapshot(w io.Writer, snap sections.Snapshot) {
	fmt.Fprintf(w, "revision %d\n", snap.Revision)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tKIND\tNAME\tPRIORITY\tLOCKED")
	for i, s := range snap.Sections {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\n", i, s.ID, s.Kind, s.Name, s.Priority, s.IsLocked)
	}
	tw.Flush()
}

// runRemote wraps a Manager operation as a cobra command body.
func runRemote(op func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		snap, err := op(ctx, remoteManager(), args)
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	}
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a position", s)
	}
	return i, nil
}

var sectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the section list",
	Args:  cobra.NoArgs,
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, _ []string) (sections.Snapshot, error) {
		return m.Load(ctx, remoteTenant)
	}),
}

var sectionsKindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the section kinds that can be added",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range sections.AddableKinds() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", k, k.Label())
		}
	},
}

var sectionsAddCmd = &cobra.Command{
	Use:   "add KIND [NAME]",
	Short: "Add a section before the footer",
	Args:  cobra.RangeArgs(1, 2),
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error) {
		kind, err := sections.ParseKind(args[0])
		if err != nil {
			return sections.Snapshot{}, err
		}
		name := ""
		if len(args) > 1 {
			name = strings.TrimSpace(args[1])
		}
		_, snap, err := m.Add(ctx, remoteTenant, name, kind)
		return snap, err
	}),
}

var sectionsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a section",
	Args:  cobra.ExactArgs(1),
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error) {
		return m.Delete(ctx, remoteTenant, args[0])
	}),
}

var sectionsUpCmd = &cobra.Command{
	Use:   "up ID",
	Short: "Move a section one place up",
	Args:  cobra.ExactArgs(1),
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error) {
		return m.MoveUp(ctx, remoteTenant, args[0])
	}),
}

var sectionsDownCmd = &cobra.Command{
	Use:   "down ID",
	Short: "Move a section one place down",
	Args:  cobra.ExactArgs(1),
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error) {
		return m.MoveDown(ctx, remoteTenant, args[0])
	}),
}

var sectionsMoveCmd = &cobra.Command{
	Use:   "move ID TO",
	Short: "Move a section to a position among the movable sections",
	Args:  cobra.ExactArgs(2),
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error) {
		to, err := parseIndex(args[1])
		if err != nil {
			return sections.Snapshot{}, err
		}
		return m.Move(ctx, remoteTenant, args[0], to)
	}),
}

var sectionsReorderCmd = &cobra.Command{
	Use:   "reorder FROM TO",
	Short: "Reorder the movable sections by position",
	Args:  cobra.ExactArgs(2),
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, args []string) (sections.Snapshot, error) {
		from, err := parseIndex(args[0])
		if err != nil {
			return sections.Snapshot{}, err
		}
		to, err := parseIndex(args[1])
		if err != nil {
			return sections.Snapshot{}, err
		}
		return m.Reorder(ctx, remoteTenant, from, to)
	}),
}

var sectionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default template",
	Args:  cobra.NoArgs,
	RunE: runRemote(func(ctx context.Context, m *sections.Manager, _ []string) (sections.Snapshot, error) {
		return m.Reset(ctx, remoteTenant)
	}),
}

func init() {
	flags := sectionsCmd.PersistentFlags()
	flags.StringVar(&remoteServer, "server", "http://localhost:8080", "restosite server URL")
	flags.StringVar(&remoteToken, "token", "", "API token (default $RESTOSITE_TOKEN)")
	flags.StringVar(&remoteTenant, "tenant", "", "user id whose sections to edit (default $RESTOSITE_TENANT)")

	sectionsCmd.AddCommand(
		sectionsListCmd,
		sectionsKindsCmd,
		sectionsAddCmd,
		sectionsDeleteCmd,
		sectionsUpCmd,
		sectionsDownCmd,
		sectionsMoveCmd,
		sectionsReorderCmd,
		sectionsResetCmd,
	)
	rootCmd.AddCommand(sectionsCmd)
}
