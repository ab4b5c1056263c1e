package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"glim-hq/cards/pkg/card"
	"glim-hq/cards/pkg/cli"
	"glim-hq/cards/pkg/upstream"
)

var cardFlags struct {
	output      string
	theme       string
	scale       float64
	concurrency int
}

var cardCmd = &cobra.Command{
	Use:   "card OWNER/REPO [OWNER/REPO...]",
	Short: "Render cards without starting a server",
	Long: `Render one or more repository cards straight from GitHub.

With a single repository the card is written to --output, or to stdout when
--output is "-". With several repositories --output names a directory and
each card is written as owner_repo.svg; progress is reported on stderr.

Examples:
  glim card octocat/hello-world > card.svg
  glim card octocat/hello-world --theme dark -o hello-world.svg
  glim card golang/go rust-lang/rust -o cards/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCard,
}

func init() {
	rootCmd.AddCommand(cardCmd)

	cardCmd.Flags().StringVarP(&cardFlags.output, "output", "o", "-", "output file, directory for several repositories, or - for stdout")
	cardCmd.Flags().StringVarP(&cardFlags.theme, "theme", "t", card.DefaultTheme, "card theme ("+strings.Join(card.ThemeNames(), ", ")+")")
	cardCmd.Flags().Float64Var(&cardFlags.scale, "scale", card.DefaultScale, "card scale")
	cardCmd.Flags().IntVar(&cardFlags.concurrency, "concurrency", 4, "cards rendered in parallel")
}

// parseRepositories turns OWNER/REPO arguments into card meanings.
func parseRepositories(args []string, theme string, scale float64) ([]card.Meaning, error) {
	if _, err := card.ParseTheme(theme); err != nil {
		return nil, cli.NewConfigError("theme", err.Error(), nil)
	}
	if scale < card.MinScale || scale > card.MaxScale {
		return nil, cli.NewConfigError("scale", fmt.Sprintf("must be between %g and %g", card.MinScale, card.MaxScale), nil)
	}

	meanings := make([]card.Meaning, 0, len(args))
	for _, arg := range args {
		owner, repo, ok := strings.Cut(strings.Trim(arg, "/"), "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return nil, cli.NewConfigError("repository", fmt.Sprintf("%q is not OWNER/REPO", arg), nil)
		}
		meanings = append(meanings, card.NewMeaning(owner, repo, theme, card.FormatSVG, scale))
	}
	return meanings, nil
}

// cardFileName is the file a card is written to inside an output directory.
func cardFileName(m card.Meaning) string {
	name := m.Owner + "_" + m.Repo
	if m.Theme != card.DefaultTheme {
		name += "_" + m.Theme
	}
	return name + "." + string(m.Format)
}

func runCard(cmd *cobra.Command, args []string) error {
	meanings, err := parseRepositories(args, cardFlags.theme, cardFlags.scale)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger.Slog())

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	client := upstream.NewClient(upstreamConfig(cfg))
	defer client.Close()

	renderer, err := card.NewRenderer()
	if err != nil {
		return cli.NewCommandError("card", err)
	}
	service := card.NewService(client, renderer, nil)

	if len(meanings) == 1 {
		err = writeSingleCard(ctx, service, meanings[0], cardFlags.output, cmd.OutOrStdout())
	} else {
		err = writeCards(ctx, service, meanings, cardFlags.output, cardFlags.concurrency, cmd.ErrOrStderr())
	}
	if ctx.Err() != nil && cmd.Context().Err() == nil {
		return cli.NewCommandError("card", cli.ErrInterrupted)
	}
	return err
}

func renderOne(ctx context.Context, service *card.Service, m card.Meaning) ([]byte, error) {
	entry, err := service.Card(ctx, m)
	if err != nil {
		return nil, err
	}
	return entry.Data, nil
}

func writeSingleCard(ctx context.Context, service *card.Service, m card.Meaning, output string, stdout io.Writer) error {
	data, err := renderOne(ctx, service, m)
	if err != nil {
		return cli.NewCommandError("card", fmt.Errorf("%s: %w", m.Repository(), err))
	}

	if output == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if info, statErr := os.Stat(output); statErr == nil && info.IsDir() {
		output = filepath.Join(output, cardFileName(m))
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return cli.NewCommandError("card", err)
	}
	slog.Debug("card written", "repository", m.Repository(), "path", output, "bytes", len(data))
	return nil
}

func writeCards(ctx context.Context, service *card.Service, meanings []card.Meaning, dir string, concurrency int, progressOut io.Writer) error {
	if dir == "-" {
		return cli.NewConfigError("output", "several repositories need an output directory", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cli.NewCommandError("card", err)
	}

	progress := cli.NewProgressReporter(progressOut)
	progress.Start(len(meanings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))
	for _, m := range meanings {
		g.Go(func() error {
			data, err := renderOne(gctx, service, m)
			if err == nil {
				err = os.WriteFile(filepath.Join(dir, cardFileName(m)), data, 0o644)
			}
			if err != nil {
				progress.Fail(m.Repository(), err)
				// Interruption stops the batch; any other failure is per card.
				if errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			progress.Done(m.Repository())
			return nil
		})
	}
	groupErr := g.Wait()

	_, failed := progress.Finish()
	if groupErr != nil {
		return cli.NewCommandError("card", groupErr)
	}
	if failed > 0 {
		return cli.NewCommandError("card", fmt.Errorf("%d of %d cards failed", failed, len(meanings)))
	}
	return nil
}
