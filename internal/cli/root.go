// Package cli implements chapterctl, the operator command line for a Chapterdesk server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chapterdesk/chapterdesk-server/internal/client"
	domainerrors "github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
)

const defaultServer = "http://localhost:5000"

// Options are the settings shared by every command.
type Options struct {
	Server  string
	JSON    bool
	Timeout time.Duration
	Verbose bool
}

// Execute runs chapterctl and returns the process exit code.
// Errors are printed in red, or as {"error","code"} with --json.
func Execute(ctx context.Context, args []string) int {
	opts := &Options{}
	cmd := newRoot(opts)
	cmd.SetArgs(args)
	return execute(ctx, cmd, opts)
}

func execute(ctx context.Context, cmd *cobra.Command, opts *Options) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if opts.JSON {
		_ = printJSON(cmd.OutOrStdout(), map[string]string{
			"error": err.Error(),
			"code":  string(domainerrors.CodeOf(err)),
		})
	} else {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error:"), err)
	}
	return 1
}

// newRoot builds the chapterctl command tree.
//
// Settings come from flags, then CHAPTERCTL_* environment variables, then a
// .chapterctl.yaml in the working or home directory.
func newRoot(opts *Options) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "chapterctl",
		Short:         "Manage the chapters of the active Chapterdesk video.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadOptions(v, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("server", defaultServer, "Base URL of the Chapterdesk server.")
	flags.Bool("json", false, "Output as JSON.")
	flags.Duration("timeout", client.DefaultTimeout, "Per request timeout.")
	flags.BoolP("verbose", "v", false, "Log requests to stderr.")
	_ = v.BindPFlags(flags)

	v.SetConfigName(".chapterctl") // .yaml is implicit
	v.SetEnvPrefix("CHAPTERCTL")
	v.AutomaticEnv()
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	AddCommands(cmd, opts)
	return cmd
}

// AddCommands registers the subcommands on topLevel.
func AddCommands(topLevel *cobra.Command, opts *Options) {
	addList(topLevel, opts)
	addSearch(topLevel, opts)
	addAdd(topLevel, opts)
	addEdit(topLevel, opts)
	addDelete(topLevel, opts)
	addPlay(topLevel, opts)
	addUpload(topLevel, opts)
	addVideo(topLevel, opts)
}

func loadOptions(v *viper.Viper, opts *Options) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	opts.Server = strings.TrimRight(v.GetString("server"), "/")
	opts.JSON = v.GetBool("json")
	opts.Timeout = v.GetDuration("timeout")
	opts.Verbose = v.GetBool("verbose")
	return nil
}

// session is what a command needs to talk to the server.
type session struct {
	client *client.HTTPClient
	logger *slog.Logger
}

func newSession(cmd *cobra.Command, opts *Options) *session {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := logger.New(logger.Config{
		Writer: cmd.ErrOrStderr(),
		Format: "pretty",
		Level:  level,
	})

	httpClient := &http.Client{Timeout: opts.Timeout}
	return &session{
		client: client.NewHTTPClient(opts.Server, httpClient, log.Logger),
		logger: log.Logger,
	}
}

// view returns a loaded chapter view driving player.
func (s *session) view(ctx context.Context, player client.Player) (*client.View, error) {
	view := client.NewView(s.client, player, s.logger)
	if err := view.Load(ctx); err != nil {
		return nil, err
	}
	return view, nil
}
