// Package analyze implements the analyze command for one-off recordings.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pondwatch/pondwatch-go/internal/analysis"
	"github.com/pondwatch/pondwatch-go/internal/analyzer"
	"github.com/pondwatch/pondwatch-go/internal/api"
	"github.com/pondwatch/pondwatch-go/internal/audio"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/denoise"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// Command creates the analyze command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		lat, lon float64
		noStore  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [recording.wav]",
		Short: "Analyze a single pond recording",
		Long:  "Run the full assessment pipeline on one audio file and print the result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var loc *analyzer.Location
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
				loc = &analyzer.Location{Latitude: lat, Longitude: lon}
			}
			return run(settings, args[0], loc, noStore)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "recording latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "recording longitude")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "skip persisting the assessment")

	return cmd
}

func run(settings *conf.Settings, path string, loc *analyzer.Location, noStore bool) error {
	logging.Init()
	if settings.Main.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	log := logging.ForService("analyze")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var store datastore.Interface
	if noStore {
		store = datastore.NewNoop()
	} else {
		store, err = datastore.New(settings)
		if err != nil {
			return err
		}
		if err := store.Open(); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	filename := filepath.Base(path)
	prep, err := audio.NewPreprocessor(settings).Process(data, filename)
	if err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}

	req := &analysis.Request{
		Samples:      prep.Samples,
		SampleRate:   settings.Audio.SampleRate,
		Filename:     filename,
		Duration:     prep.Metadata.Duration,
		Format:       string(prep.Metadata.Format),
		QualityScore: prep.QualityScore,
		Location:     loc,
	}

	if dn, err := denoise.New(settings).Denoise(prep.Samples, filename); err != nil {
		log.Warn("denoising failed, analyzing raw audio", "error", err)
	} else {
		req.Samples = dn.Samples
		req.NoiseType = string(dn.Profile.Type)
		req.NoiseReductionDB = dn.NoiseReductionDB
	}

	result, err := analysis.NewOrchestrator(settings, store).Process(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.ToAssessmentDTO(result.Assessment))
}
