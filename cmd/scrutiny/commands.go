package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// options are the flags shared by every subcommand.
type options struct {
	input    string
	maxDepth int
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "scrutiny",
		Short:         "Inspect SCRUTINY posts from a JSONL file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.input, "input", "i", "-", "JSONL file of raw posts, - for stdin")
	root.PersistentFlags().IntVar(&opts.maxDepth, "max-depth", scrutiny.DefaultMaxDepth, "relationship traversal bound")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine diagnostics to stderr")

	root.AddCommand(
		newSummaryCmd(opts),
		newClassifyCmd(opts),
		newGraphCmd(opts),
		newDisplayCmd(opts),
	)
	return root
}

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print collection sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, _, err := opts.build(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap.Collections.Counts())
		},
	}
}

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Print the kind and tag generation of every post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			posts, err := opts.load(cmd)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tLEGACY")
			for _, p := range scrutiny.Dedupe(posts) {
				legacy := "-"
				if status := scrutiny.Legacy(p.Tags); status.Legacy {
					legacy = status.Reason
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, scrutiny.Classify(p.Tags), legacy)
			}
			return tw.Flush()
		},
	}
}

func newGraphCmd(opts *options) *cobra.Command {
	var bindingID string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the relationship graph of a binding, or list bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, engine, err := opts.build(cmd)
			if err != nil {
				return err
			}

			if bindingID == "" {
				ids := make([]string, 0, len(snap.Collections.Bindings))
				for id := range snap.Collections.Bindings {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				return writeJSON(cmd.OutOrStdout(), ids)
			}

			g, ok := engine.BindingGraph(snap, bindingID)
			if !ok {
				return fmt.Errorf("binding %s not found", bindingID)
			}
			return writeJSON(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().StringVar(&bindingID, "binding", "", "binding post id")
	return cmd
}

func newDisplayCmd(opts *options) *cobra.Command {
	var (
		postID        string
		forceOriginal bool
	)
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Print the version of a post to display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, _, err := opts.build(cmd)
			if err != nil {
				return err
			}
			shown, ok := snap.Display(postID, forceOriginal)
			if !ok {
				return fmt.Errorf("post %s not found", postID)
			}
			return writeJSON(cmd.OutOrStdout(), shown)
		},
	}
	cmd.Flags().StringVar(&postID, "id", "", "post id")
	cmd.Flags().BoolVar(&forceOriginal, "force-original", false, "ignore updates and show the original")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) load(cmd *cobra.Command) ([]scrutiny.RawPost, error) {
	var r io.Reader = cmd.InOrStdin()
	if o.input != "-" {
		f, err := os.Open(o.input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return readPosts(r, o.logger(cmd))
}

func (o *options) build(cmd *cobra.Command) (*scrutiny.Snapshot, *scrutiny.Engine, error) {
	posts, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	engine := scrutiny.New(
		scrutiny.WithMaxDepth(o.maxDepth),
		scrutiny.WithObserver(scrutiny.NewLogObserver(o.logger(cmd))),
	)
	return engine.Build(posts), engine, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
