package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tvmate/server/internal/client"
)

var rootCmd = &cobra.Command{
	Use:   "tvmate",
	Short: "Headless watch-together client",
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a room and join it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd.Context(), "")
	},
}

var joinCmd = &cobra.Command{
	Use:   "join CODE",
	Short: "Join an existing room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd.Context(), args[0])
	},
}

var (
	flagServerURL string
	flagName      string
	flagLogLevel  string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServerURL, "server", "ws://localhost:8080/api/v1", "server API base URL")
	flags.StringVar(&flagName, "name", os.Getenv("USER"), "display name")
	flags.StringVar(&flagLogLevel, "log-level", "WARN", "logging level")

	rootCmd.AddCommand(hostCmd, joinCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runClient(ctx context.Context, roomCode string) error {
	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(strings.ToUpper(flagLogLevel))); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flagName == "" {
		return fmt.Errorf("--name is required")
	}

	c := client.New(&client.Config{
		ServerURL: flagServerURL,
		Name:      flagName,
	}, os.Stdout, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := scanLines(os.Stdin)
	commands := make(chan string)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return c.Run(gctx, roomCode, commands)
	})

	g.Go(func() error {
		return forwardLines(gctx, lines, commands)
	})

	fmt.Fprintln(os.Stdout, "commands: /play /pause /seek SECONDS /select NAME /quit, anything else is chat")

	return g.Wait()
}

// forwardLines passes lines to commands until lines ends or ctx is done,
// then closes commands.
func forwardLines(ctx context.Context, lines <-chan string, commands chan<- string) error {
	defer close(commands)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			select {
			case commands <- line:
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// scanLines feeds lines from r until EOF. Reads cannot be cancelled, so the
// reader may outlive the session until the process exits.
func scanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
