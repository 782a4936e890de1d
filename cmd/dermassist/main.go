package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/1F47E/dermassist/pkg/api"
	"github.com/1F47E/dermassist/pkg/config"
	"github.com/1F47E/dermassist/pkg/directory"
	"github.com/1F47E/dermassist/pkg/geo"
	"github.com/1F47E/dermassist/pkg/models"
	"github.com/1F47E/dermassist/pkg/postgres"
	"github.com/1F47E/dermassist/pkg/ranking"
	"github.com/1F47E/dermassist/pkg/report"
	"github.com/1F47E/dermassist/pkg/storage"
)

var (
	configFile string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "dermassist",
	Short:         "Dermatologist finder and diagnosis report toolkit",
	Long:          `Great-circle distances, distance-ranked dermatologist listings and shareable diagnosis report cards.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		return config.SetupLogging(cfg.Log)
	},
}

var distanceCmd = &cobra.Command{
	Use:   "distance LAT1 LNG1 LAT2 LNG2",
	Short: "Great-circle distance between two points in km",
	Args:  cobra.ExactArgs(4),
	RunE:  runDistance,
}

var doctorsCmd = &cobra.Command{
	Use:   "doctors",
	Short: "List dermatologists, optionally ranked by distance",
	RunE:  runDoctors,
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "List known cities or the ones nearest to a point",
	RunE:  runCities,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a diagnosis report card",
	RunE:  runReport,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the Postgres schema and load the doctor seed",
	RunE:  runSeed,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var (
	filterCity   string
	filterSearch string
	userLat      float64
	userLng      float64
	sortDistance bool
	jsonOutput   bool

	nearestK int

	imagePath     string
	diagnosisCode string
	diagnosisName string
	riskLevel     string
	confidence    float64
	outputDir     string
	uploadReport  bool
	serveAddr     string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	doctorsCmd.Flags().StringVar(&filterCity, "city", "", "Only doctors in this city")
	doctorsCmd.Flags().StringVarP(&filterSearch, "search", "s", "", "Match name, specialty, specialization or city")
	doctorsCmd.Flags().Float64Var(&userLat, "lat", 0, "Your latitude")
	doctorsCmd.Flags().Float64Var(&userLng, "lng", 0, "Your longitude")
	doctorsCmd.Flags().BoolVar(&sortDistance, "sort", false, "Sort by distance, unknown distances last")
	doctorsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	doctorsCmd.MarkFlagsRequiredTogether("lat", "lng")

	citiesCmd.Flags().Float64Var(&userLat, "lat", 0, "Latitude of the query point")
	citiesCmd.Flags().Float64Var(&userLng, "lng", 0, "Longitude of the query point")
	citiesCmd.Flags().IntVarP(&nearestK, "k", "k", 3, "Number of nearest cities")
	citiesCmd.MarkFlagsRequiredTogether("lat", "lng")

	reportCmd.Flags().StringVarP(&imagePath, "image", "i", "", "Scanned image")
	reportCmd.Flags().StringVarP(&diagnosisCode, "diagnosis", "d", "", "Diagnosis code (mel, bcc, nv, ...)")
	reportCmd.Flags().StringVar(&diagnosisName, "name", "", "Diagnosis display name (default from the code)")
	reportCmd.Flags().StringVar(&riskLevel, "risk", "", `Risk level, e.g. "High Risk" (default from the code)`)
	reportCmd.Flags().Float64Var(&confidence, "confidence", 0, "Model confidence between 0 and 1")
	reportCmd.Flags().StringVarP(&outputDir, "out", "o", "", "Output directory (default report.output_dir)")
	reportCmd.Flags().BoolVar(&uploadReport, "upload", false, "Also upload the report to object storage")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")

	rootCmd.AddCommand(distanceCmd, doctorsCmd, citiesCmd, reportCmd, seedCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func runDistance(cmd *cobra.Command, args []string) error {
	coords := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", arg, err)
		}
		coords[i] = v
	}

	km := geo.Distance(coords[0], coords[1], coords[2], coords[3])
	fmt.Fprintln(cmd.OutOrStdout(), render(distanceStyle, fmt.Sprintf("%.1f km", km)))
	return nil
}

// userLocation returns the --lat/--lng point, or nil when not given
func userLocation(cmd *cobra.Command) (*models.Location, error) {
	if !cmd.Flags().Changed("lat") {
		return nil, nil
	}
	if userLat < -90 || userLat > 90 || userLng < -180 || userLng > 180 {
		return nil, fmt.Errorf("location %.4f, %.4f out of range", userLat, userLng)
	}
	return &models.Location{Lat: userLat, Lon: userLng}, nil
}

func runDoctors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := userLocation(cmd)
	if err != nil {
		return err
	}

	cities, err := loadCities(cfg)
	if err != nil {
		return err
	}

	dir, release, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	doctors, err := dir.Doctors(ctx, directory.Filter{City: filterCity, Search: filterSearch})
	if err != nil {
		return err
	}
	ranked := ranking.Rank(doctors, user, sortDistance, cities)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"doctors": ranked, "total": len(ranked)})
	}
	printDoctors(cmd.OutOrStdout(), ranked)
	return nil
}

func runCities(cmd *cobra.Command, args []string) error {
	cities, err := loadCities(cfg)
	if err != nil {
		return err
	}

	loc, err := userLocation(cmd)
	if err != nil {
		return err
	}
	if loc == nil {
		printCities(cmd.OutOrStdout(), cities.Cities())
		return nil
	}
	if nearestK < 1 {
		return errors.New("k must be positive")
	}
	printNearby(cmd.OutOrStdout(), cities.Nearest(*loc, nearestK))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if imagePath == "" || (diagnosisCode == "" && diagnosisName == "") {
		log.WithField("prefix", "report").Warn("no image or diagnosis given, nothing to render")
		return nil
	}

	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %v", confidence)
	}

	result := &models.DiagnosisResult{
		Diagnosis:     diagnosisCode,
		DiagnosisName: diagnosisName,
		RiskLevel:     models.RiskLevel(riskLevel),
		Confidence:    confidence,
	}
	if result.RiskLevel == "" {
		result.RiskLevel = result.Risk()
	}

	dir := outputDir
	if dir == "" {
		dir = cfg.Report.OutputDir
	}
	sink, err := reportSink(ctx, cfg, dir, uploadReport || cfg.Storage.Enabled)
	if err != nil {
		return err
	}
	if sink == nil {
		return errors.New("no report destination: set --out or report.output_dir")
	}

	renderer := report.NewRenderer(cfg.Report.LoadTimeout)
	rep, err := renderer.Download(ctx, report.FileSource(imagePath), result, sink)
	if err != nil {
		return err
	}
	if rep == nil {
		return nil
	}
	if !rep.ImageDrawn {
		log.WithField("prefix", "report").WithField("image", imagePath).Warn("report rendered without the scan")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  %d%%\n", render(nameStyle, result.DisplayName()), riskLabel(result.RiskLevel), rep.ConfidencePercent)
	if dir != "" {
		printSuccess(out, "saved "+report.DirSink{Dir: dir}.Path(rep.Filename))
	}
	if uploadReport || cfg.Storage.Enabled {
		printSuccess(out, "uploaded "+storage.ObjectKey(rep.Filename))
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is not set")
	}

	static, err := loadStatic(cfg)
	if err != nil {
		return err
	}

	store, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	if err := store.BulkInsert(ctx, static.All()); err != nil {
		return err
	}

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d doctors in the database", count))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cities, err := loadCities(cfg)
	if err != nil {
		return err
	}

	dir, release, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	opts := api.Options{
		Cities:    cities,
		Directory: dir,
		Renderer:  report.NewRenderer(cfg.Report.LoadTimeout),
	}
	if cfg.Storage.Enabled {
		sink, err := newStorage(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up storage: %w", err)
		}
		opts.Sink = sink
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	log.WithField("prefix", "serve").
		WithField("directory", cfg.Directory.Source).
		WithField("storage", cfg.Storage.Enabled).
		Info("starting dermassist")
	return api.NewServer(opts).Run(ctx, addr)
}
