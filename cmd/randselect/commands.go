package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/randselect"
	"github.com/unkn0wn-root/randselect/config"
	"github.com/unkn0wn-root/randselect/internal/app"
	"github.com/unkn0wn-root/randselect/markup"
	"github.com/unkn0wn-root/randselect/server"
)

var (
	configPath string
	views      int
	seed       uint64
	maxPasses  int

	rootCmd = &cobra.Command{
		Use:           "randselect",
		Short:         "Serve pages whose randomized choices change on every view",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	renderCmd = &cobra.Command{
		Use:   "render [file]",
		Short: "Render page markup once and print several resolved views",
		Long: `render expands <choose> and {{#choose:}} markup from file (or stdin
when file is "-" or missing) exactly once, then resolves the cached
artifact --views times, the way a render-cache hit is served.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRender,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when empty)")

	renderCmd.Flags().IntVarP(&views, "views", "n", 3, "number of views to resolve")
	renderCmd.Flags().Uint64Var(&seed, "seed", 0, "seed for reproducible views (0 => random)")
	renderCmd.Flags().IntVar(&maxPasses, "max-passes", randselect.DefaultMaxPasses, "substitution pass bound")

	rootCmd.AddCommand(serveCmd, renderCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	log, sl, flush, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{Logger: log, Slog: sl})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.NewRouter(a.Handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("listening", randselect.Fields{"addr": cfg.Listen, "pages": len(cfg.Pages)})

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runRender(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	src, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	var entropy randselect.Entropy
	if seed != 0 {
		entropy = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	eng := randselect.New(randselect.Options{Entropy: entropy, MaxPasses: maxPasses})
	r, err := markup.New(markup.Options{Engine: eng})
	if err != nil {
		return err
	}

	art := randselect.Artifact{Page: 1, Revision: 1, RenderedAt: time.Now()}
	if art.Text, err = r.Render(art.Page, string(src), &art.Meta); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "choice sets: %d (randomized=%v, uncacheable=%v)\n", art.Meta.Len(), art.Meta.Randomized, art.Meta.Uncacheable)
	for i := 1; i <= views; i++ {
		res := eng.Resolve(&art, nil)
		fmt.Fprintf(out, "--- view %d ---\n%s\n", i, res.Text)
	}
	return nil
}
