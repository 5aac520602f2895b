package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/config"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/titleclient"
)

var errNoTitle = errors.New("no title available")

type options struct {
	server  string
	model   string
	verbose bool
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "title [history.json|-]",
		Short: "Request a generated title for a conversation",
		Long: `Reads a conversation history (a JSON array of {"role","content"} messages)
from a file, or from stdin when the argument is "-" or missing, and asks the
title server to generate a title for it. Other message fields, such as
"images", are sent to the server unchanged.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return run(cmd.Context(), opts, path, stdin, stdout, stderr)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "title server base URL (default $TITLE_SERVER_URL or http://localhost:8080)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model used for title generation (default $TITLE_DEFAULT_MODEL)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log request diagnostics to stderr")

	return cmd
}

func run(ctx context.Context, opts *options, path string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	server := opts.server
	if server == "" {
		server = cfg.TitleServerURL
	}
	model := opts.model
	if model == "" {
		model = cfg.TitleDefaultModel
	}

	history, err := readHistory(path, stdin)
	if err != nil {
		return err
	}

	level := slog.LevelError + 1
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: stderr})

	requester := titleclient.New(server, nil, log)

	title, ok := requester.RequestTitle(ctx, history, model)
	if !ok {
		return errNoTitle
	}

	_, err = fmt.Fprintln(stdout, title)
	return err
}

func readHistory(path string, stdin io.Reader) (chat.History, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		defer f.Close()
		r = f
	}

	var history chat.History
	if err := json.NewDecoder(r).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
