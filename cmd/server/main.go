package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/api"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/engine"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/scoring"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/source"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "vtuber-recommend",
	Short:         "VTuber recommendation service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the catalog and start the HTTP API",
	RunE:  runServe,
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Load the catalog once and print the cluster characterisation",
	RunE:  runClusters,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Load the catalog once and print recommendations for a query",
	RunE:  runRecommend,
}

var (
	sourceFlag string
	verbose    bool
	query      scoring.Query
	limitFlag  int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&sourceFlag, "source", "s", "", "Catalog source to load (seed, file, wiki); defaults to CATALOG_BOOTSTRAP")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	f := recommendCmd.Flags()
	f.StringSliceVar(&query.StreamingGenres, "genre", nil, "Preferred streaming genres")
	f.StringSliceVar(&query.GameGenres, "game", nil, "Preferred game genres")
	f.StringVar(&query.StreamingTime, "time", "", "Preferred streaming time (昼, 夕方, 夜)")
	f.StringVar(&query.Gender, "gender", "", "Preferred gender (女性, 男性)")
	f.StringVar(&query.VoiceType, "voice", "", "Preferred voice type (高音, 中音, 低音, 特殊)")
	f.StringSliceVar(&query.PersonalityTraits, "personality", nil, "Preferred personality traits")
	f.IntVarP(&limitFlag, "limit", "n", scoring.DefaultLimit, "Number of results (at most 10)")

	rootCmd.AddCommand(serveCmd, clustersCmd, recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger.WithField("service", "vtuber-recommend")
}

// app is the wired catalog manager plus the source used for the first load.
type app struct {
	cfg       *config.Config
	logger    *logrus.Entry
	manager   *engine.Manager
	bootstrap source.Source
	cache     storage.RecordStorage
}

func newApp(logger *logrus.Entry) (*app, error) {
	cfg := config.Load()
	if sourceFlag != "" {
		cfg.Catalog.Bootstrap = sourceFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cache storage.RecordStorage
	if cfg.Catalog.Bootstrap == source.KindWiki || cfg.Catalog.Reload == source.KindWiki {
		fs, err := storage.NewFileStorage(cfg.Catalog.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize record cache: %w", err)
		}
		cache = fs
	}

	bootstrap, err := source.New(cfg.Catalog.Bootstrap, cfg, cache, logger)
	if err != nil {
		return nil, err
	}
	reload, err := source.New(cfg.Catalog.Reload, cfg, cache, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		manager:   engine.NewManager(cfg, reload, logger.WithField("component", "engine")),
		bootstrap: bootstrap,
		cache:     cache,
	}, nil
}

func (a *app) load(ctx context.Context) error {
	_, err := a.manager.ReloadFrom(ctx, a.bootstrap)
	return err
}

func (a *app) close() {
	a.manager.Stop()
	if a.cache != nil {
		a.cache.Close()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	entry := newLogger()
	entry.Info("Starting VTuber Recommendation Service")

	a, err := newApp(entry)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.load(ctx); err != nil {
		entry.WithError(err).Error("Initial catalog load failed; serving without a catalog until reload succeeds")
	}

	if a.cfg.Reload.Schedule != "" {
		if err := a.manager.StartScheduler(a.cfg.Reload.Schedule); err != nil {
			return err
		}
	}

	server := api.NewServer(a.manager, entry.WithField("component", "api"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(a.cfg.Server)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	entry.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runClusters(cmd *cobra.Command, args []string) error {
	a, err := newApp(newLogger())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(cmd.Context()); err != nil {
		return err
	}
	printClusters(cmd.OutOrStdout(), a.manager)
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := newApp(newLogger())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(cmd.Context()); err != nil {
		return err
	}
	if query.IsEmpty() {
		fmt.Fprintln(cmd.ErrOrStderr(), "No preferences given; results follow catalog order")
	}
	printRecommendations(cmd.OutOrStdout(), a.manager.RecommendN(query, limitFlag))
	return nil
}

func printClusters(w io.Writer, m *engine.Manager) {
	snap := m.Snapshot()
	fmt.Fprintf(w, "%d profiles, %d clusters (requested %d)\n",
		len(snap.Profiles), snap.Clustering.EffectiveK, snap.Clustering.RequestedK)

	if constant := m.ConstantFeatures(); len(constant) > 0 {
		fmt.Fprintf(w, "constant features: %s\n", strings.Join(constant, ", "))
	}

	for _, c := range m.Clusters() {
		fmt.Fprintf(w, "\nCluster %d (%d members)\n", c.ClusterID, c.Size)
		fmt.Fprintf(w, "  avg subscribers: %.0f\n", c.AvgSubscribers)
		fmt.Fprintf(w, "  avg viewers:     %.0f\n", c.AvgViewers)
		fmt.Fprintf(w, "  gender: %s  voice: %s  time: %s\n", c.MainGender, c.MainVoiceType, c.MainStreamingTime)

		var genres, traits []string
		for _, g := range c.CommonGenres {
			genres = append(genres, fmt.Sprintf("%s(%d)", g.Value, g.Count))
		}
		for _, p := range c.CommonPersonality {
			traits = append(traits, fmt.Sprintf("%s(%d)", p.Value, p.Count))
		}
		fmt.Fprintf(w, "  genres: %s\n", strings.Join(genres, ", "))
		fmt.Fprintf(w, "  personality: %s\n", strings.Join(traits, ", "))

		var members []string
		for _, p := range snap.Profiles {
			if p.ClusterID != nil && *p.ClusterID == c.ClusterID {
				members = append(members, p.Name)
			}
		}
		fmt.Fprintf(w, "  members: %s\n", strings.Join(members, ", "))
	}
}

func printRecommendations(w io.Writer, matches []scoring.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No recommendations")
		return
	}
	for i, m := range matches {
		fmt.Fprintf(w, "%2d. %s (score %d)\n", i+1, m.Profile.Name, m.Score)
	}
}
