package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/specialistvlad/assetgraph/internal/app"
	"github.com/specialistvlad/assetgraph/internal/controller"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	ExitIssues = 1
	ExitUsage  = 2
)

// options collects the persistent flags shared by every command.
type options struct {
	cfg  app.Config
	vars []string
}

// NewRootCommand builds the command tree. Output of the commands and the
// application logs go to outW.
func NewRootCommand(outW io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "assetgraph",
		Short: "Runs asset processing graphs.",
		Long: `AssetGraph executes a graph of asset processing nodes described in an
HCL or YAML document. Nodes are re-run only when their inputs change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	})

	f := root.PersistentFlags()
	f.StringVarP(&opts.cfg.GraphPath, "graph", "g", "", "Path to the graph document (.hcl, .yaml or .yml).")
	f.StringVar(&opts.cfg.AssetsPath, "assets", ".", "Root directory of the project assets.")
	f.StringVarP(&opts.cfg.Target, "target", "t", "", "Build target platform.")
	f.StringVarP(&opts.cfg.OutputDir, "output", "o", "build", "Directory receiving build output.")
	f.StringVar(&opts.cfg.CacheDir, "cache-dir", ".assetgraph", "Directory holding incremental state and intermediate files.")
	f.BoolVar(&opts.cfg.InMemoryCache, "in-memory-cache", false, "Keep incremental state in memory only.")
	f.IntVar(&opts.cfg.Workers, "workers", 1, "Number of nodes processed concurrently.")
	f.StringVar(&opts.cfg.PackagerCmd, "packager-cmd", "", "Command run on every packaged artifact.")
	f.StringVar(&opts.cfg.LogFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	f.StringVar(&opts.cfg.LogLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	f.IntVar(&opts.cfg.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	f.DurationVar(&opts.cfg.Debounce, "debounce", 0, "Delay collecting file changes in watch mode.")
	f.StringArrayVar(&opts.vars, "var", nil, "Set a document variable (name=value). Repeatable.")
	f.BoolVar(&opts.cfg.Force, "force", false, "Visit every node even when its inputs are unchanged.")

	root.AddCommand(
		newValidateCommand(opts, outW),
		newSetupCommand(opts, outW),
		newBuildCommand(opts, outW),
		newWatchCommand(opts, outW),
		newCacheCommand(opts, outW),
		newKindsCommand(outW),
	)
	return root
}

// Execute runs the command line in args.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	root := NewRootCommand(outW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) && isUsageError(err) {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return err
}

// isUsageError reports errors raised by cobra itself before a command ran.
func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "accepts ") ||
		strings.Contains(msg, "required flag")
}

// config validates the persistent flags into an app configuration.
func (o *options) config() (*app.Config, error) {
	cfg := o.cfg
	if len(o.vars) > 0 {
		cfg.Variables = make(map[string]string, len(o.vars))
		for _, kv := range o.vars {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return nil, &ExitError{Code: ExitUsage, Message: fmt.Sprintf("invalid --var %q: expected name=value", kv)}
			}
			cfg.Variables[name] = value
		}
	}
	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("CLI configuration validated.", "config", validated)
	return validated, nil
}

// withApp builds the application from the flags, runs fn and releases it.
func (o *options) withApp(outW io.Writer, fn func(*app.App) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	a, err := app.NewApp(outW, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("Failed to close application.", "error", cerr)
		}
	}()
	return fn(a)
}

// issuesErr prints issues and turns a non-empty list into exit code 1.
func issuesErr(a *app.App, issues controller.IssueList) error {
	if issues.Empty() {
		return nil
	}
	a.PrintIssues(issues)
	return &ExitError{Code: ExitIssues, Message: fmt.Sprintf("%d issue(s) found", len(issues))}
}

func newValidateCommand(opts *options, outW io.Writer) *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Checks the graph, or a single node, without producing output.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(outW, func(a *app.App) error {
				issues, err := a.Validate(cmd.Context(), node)
				if err != nil {
					return &ExitError{Code: ExitUsage, Message: err.Error()}
				}
				if err := issuesErr(a, issues); err != nil {
					return err
				}
				fmt.Fprintln(outW, "✅ No issues found.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "Name of the node to validate.")
	return cmd
}

func newSetupCommand(opts *options, outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Runs a dry pass over the graph.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(outW, func(a *app.App) error {
				return issuesErr(a, a.Setup(cmd.Context()))
			})
		},
	}
}

func newBuildCommand(opts *options, outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Validates the whole graph, then produces the build output.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(outW, func(a *app.App) error {
				return issuesErr(a, a.Build(cmd.Context()))
			})
		},
	}
}

func newWatchCommand(opts *options, outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keeps the graph up to date while assets and the document change.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(outW, func(a *app.App) error {
				return a.Watch(cmd.Context())
			})
		},
	}
}

func newCacheCommand(opts *options, outW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manages incremental state.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drops all incremental state so the next pass visits every node.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(outW, func(a *app.App) error {
				return a.DeleteCache(cmd.Context())
			})
		},
	})
	return cmd
}

func newKindsCommand(outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "Lists the node kinds compiled into the binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.Load(app.CoreModules()...)
			tw := tabwriter.NewWriter(outW, 0, 4, 2, ' ', 0)
			for _, kind := range reg.Kinds() {
				def, _ := reg.Lookup(kind)
				fmt.Fprintf(tw, "%s\t%s\n", kind, def.Description)
			}
			return tw.Flush()
		},
	}
}
