// Package analysis runs both acoustic analyzers concurrently, fuses their
// outputs into a water-quality assessment, persists history and drives
// alerting and notification. Analyzer failures are absorbed per branch;
// only a persistence failure can fail a request, and even then the
// computed assessment is returned alongside the error.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pondwatch/pondwatch-go/internal/alert"
	"github.com/pondwatch/pondwatch-go/internal/analyzer"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/logging"
	"github.com/pondwatch/pondwatch-go/internal/notification"
	"github.com/pondwatch/pondwatch-go/internal/observability"
)

// Orchestrator coordinates the analysis pipeline behind one Process call.
type Orchestrator struct {
	settings    *conf.Settings
	species     analyzer.SpeciesCallAnalyzer
	environment analyzer.EnvironmentalAnalyzer
	store       datastore.Interface
	alerts      *alert.Manager
	dispatcher  *notification.Dispatcher
	fusion      *Fusion
	log         *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSpeciesAnalyzer substitutes the species call analyzer.
func WithSpeciesAnalyzer(a analyzer.SpeciesCallAnalyzer) Option {
	return func(o *Orchestrator) { o.species = a }
}

// WithEnvironmentalAnalyzer substitutes the environmental analyzer.
func WithEnvironmentalAnalyzer(a analyzer.EnvironmentalAnalyzer) Option {
	return func(o *Orchestrator) { o.environment = a }
}

// WithDispatcher substitutes the notification dispatcher.
func WithDispatcher(d *notification.Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// NewOrchestrator wires the pipeline with the stand-in analyzers unless
// options substitute model-backed ones.
func NewOrchestrator(settings *conf.Settings, store datastore.Interface, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings:    settings,
		species:     analyzer.NewStandInSpeciesAnalyzer(),
		environment: analyzer.NewStandInEnvironmentalAnalyzer(),
		store:       store,
		alerts:      alert.NewManager(store, settings),
		dispatcher:  notification.NewDispatcher(store, settings),
		fusion:      NewFusion(settings.Fusion),
		log:         logging.ForService("analysis"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Request is one recording to assess, already preprocessed and denoised.
type Request struct {
	Samples    []float32
	SampleRate int
	Filename   string

	// Recording metadata carried into the stored assessment.
	Duration     float64
	Format       string
	QualityScore float64

	// Denoise metrics, advisory.
	NoiseType        string
	NoiseReductionDB float64

	// Optional context.
	Location  *analyzer.Location
	FieldID   *uint
	FieldName string
	UserID    string
}

// Result is the full outcome of one Process call.
type Result struct {
	Assessment *datastore.Assessment
	Alerts     []datastore.Alert
	Deliveries []notification.Delivery
}

// Process runs both analyzers, fuses, persists and alerts. The returned
// assessment is always complete and schema-valid; err is non-nil only when
// persisting the assessment failed.
func (o *Orchestrator) Process(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	in := analyzer.Input{
		Samples:    req.Samples,
		SampleRate: req.SampleRate,
		Filename:   req.Filename,
		Location:   req.Location,
	}

	speciesRes, envRes, speciesFellBack, envFellBack := o.runBranches(ctx, in)

	speciesRes = sanitizeSpecies(speciesRes, &o.settings.Fusion)
	envRes = sanitizeEnvironment(envRes)

	overall, status := o.fusion.Fuse(
		speciesRes.CallDensity, envRes.BiodiversityScore, envRes.EcosystemHealth)

	assessment := o.buildAssessment(req, speciesRes, envRes, overall, status,
		speciesFellBack, envFellBack)

	persistErr := o.persist(assessment)

	result := &Result{Assessment: assessment}
	if persistErr == nil {
		result.Alerts = o.evaluateAlerts(ctx, assessment, req.UserID, &result.Deliveries)
	}

	observability.AnalysesProcessed.WithLabelValues(status).Inc()
	observability.AnalysisDuration.Observe(time.Since(start).Seconds())
	o.log.Info("analysis complete",
		"assessment_id", assessment.PublicID,
		"filename", req.Filename,
		"status", status,
		"overall_score", overall,
		"call_density", speciesRes.CallDensity,
		"biodiversity", envRes.BiodiversityScore,
		"alerts", len(result.Alerts),
		"duration", time.Since(start))

	return result, persistErr
}

// runBranches executes both analyzers concurrently. Each branch recovers
// its own error or panic by substituting the deterministic fallback, so a
// broken analyzer never takes down a request or its sibling branch.
func (o *Orchestrator) runBranches(ctx context.Context, in analyzer.Input) (
	speciesRes *analyzer.SpeciesCallResult, envRes *analyzer.EnvironmentalResult,
	speciesFellBack, envFellBack bool) {

	timeout := o.settings.AnalyzerTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		speciesRes, speciesFellBack = o.runSpecies(ctx, in, timeout)
	}()
	go func() {
		defer wg.Done()
		envRes, envFellBack = o.runEnvironment(ctx, in, timeout)
	}()
	wg.Wait()
	return speciesRes, envRes, speciesFellBack, envFellBack
}

func (o *Orchestrator) runSpecies(ctx context.Context, in analyzer.Input, timeout time.Duration) (res *analyzer.SpeciesCallResult, fellBack bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("species analyzer panicked", "filename", in.Filename, "panic", r)
			res, fellBack = analyzer.FallbackSpeciesResult(in.Filename), true
			observability.AnalyzerFallbacks.WithLabelValues("species").Inc()
		}
	}()

	branchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := o.species.AnalyzeCalls(branchCtx, in)
	if err != nil {
		o.log.Warn("species analyzer failed, using fallback",
			"filename", in.Filename, "error", err)
		observability.AnalyzerFallbacks.WithLabelValues("species").Inc()
		return analyzer.FallbackSpeciesResult(in.Filename), true
	}
	return out, false
}

func (o *Orchestrator) runEnvironment(ctx context.Context, in analyzer.Input, timeout time.Duration) (res *analyzer.EnvironmentalResult, fellBack bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("environmental analyzer panicked", "filename", in.Filename, "panic", r)
			res, fellBack = analyzer.FallbackEnvironmentalResult(in.Filename), true
			observability.AnalyzerFallbacks.WithLabelValues("environment").Inc()
		}
	}()

	branchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := o.environment.AnalyzeEnvironment(branchCtx, in)
	if err != nil {
		o.log.Warn("environmental analyzer failed, using fallback",
			"filename", in.Filename, "error", err)
		observability.AnalyzerFallbacks.WithLabelValues("environment").Inc()
		return analyzer.FallbackEnvironmentalResult(in.Filename), true
	}
	return out, false
}

func (o *Orchestrator) buildAssessment(req *Request,
	speciesRes *analyzer.SpeciesCallResult, envRes *analyzer.EnvironmentalResult,
	overall float64, status string, speciesFellBack, envFellBack bool) *datastore.Assessment {

	a := &datastore.Assessment{
		PublicID:     uuid.New().String(),
		CreatedAt:    time.Now(),
		Filename:     req.Filename,
		Duration:     req.Duration,
		SampleRate:   req.SampleRate,
		Format:       req.Format,
		QualityScore: req.QualityScore,

		NoiseType:        req.NoiseType,
		NoiseReductionDB: req.NoiseReductionDB,

		CallDensity:         speciesRes.CallDensity,
		CallConfidence:      speciesRes.Confidence,
		WaterQualityHint:    speciesRes.WaterQualityHint,
		SpeciesUsedFallback: speciesFellBack,

		BiodiversityScore:       envRes.BiodiversityScore,
		HabitatQuality:          envRes.HabitatQuality,
		NoisePollution:          envRes.NoisePollution,
		EcosystemHealth:         envRes.EcosystemHealth,
		EnvironmentUsedFallback: envFellBack,

		OverallScore: overall,
		Status:       status,

		FieldID:   req.FieldID,
		FieldName: req.FieldName,
	}

	for _, s := range speciesRes.Species {
		a.Species = append(a.Species, datastore.SpeciesDetection{
			CommonName:     s.CommonName,
			ScientificName: s.ScientificName,
			Calls:          s.Calls,
			Confidence:     s.Confidence,
		})
	}

	if req.Location != nil {
		lat, lon := req.Location.Latitude, req.Location.Longitude
		a.Latitude, a.Longitude = &lat, &lon
	}

	a.Factors = buildFactors(a, speciesFellBack, envFellBack)
	a.Recommendations = buildRecommendations(a, envRes.Recommendations)
	return a
}

func (o *Orchestrator) persist(a *datastore.Assessment) error {
	if err := o.store.SaveAssessment(a); err != nil {
		return err
	}
	date := a.CreatedAt.Format("2006-01-02")
	if err := o.store.IncrementDailyCount(date); err != nil {
		// The assessment itself is safe, a lost counter tick is tolerable.
		o.log.Warn("daily counter update failed", "date", date, "error", err)
	}
	return nil
}

// evaluateAlerts runs the alert rules and pushes any created alerts through
// the notification dispatcher. Failures here are logged, never fatal.
func (o *Orchestrator) evaluateAlerts(ctx context.Context, a *datastore.Assessment, userID string, deliveries *[]notification.Delivery) []datastore.Alert {
	created, err := o.alerts.Evaluate(a)
	if err != nil {
		o.log.Error("alert evaluation failed", "assessment_id", a.PublicID, "error", err)
	}

	if userID == "" {
		userID = "default"
	}
	for i := range created {
		observability.AlertsCreated.WithLabelValues(created[i].Type).Inc()
		res := o.dispatcher.Dispatch(ctx, userID, notification.FromAlert(&created[i]))
		if res.InQuietHours {
			o.log.Debug("alert notification suppressed by quiet hours",
				"alert_type", created[i].Type, "assessment_id", a.PublicID)
		}
		for _, d := range res.Deliveries {
			switch {
			case d.Err != nil:
				observability.NotificationsFailed.WithLabelValues(d.Channel).Inc()
			case d.Sent():
				observability.NotificationsSent.WithLabelValues(d.Channel).Inc()
			}
			*deliveries = append(*deliveries, d)
		}
	}
	return created
}

// buildFactors lists the human-readable drivers behind the verdict.
func buildFactors(a *datastore.Assessment, speciesFellBack, envFellBack bool) []string {
	var factors []string

	switch {
	case a.CallDensity >= 50:
		factors = append(factors, fmt.Sprintf("Very active frog chorus (%.0f calls/min)", a.CallDensity))
	case a.CallDensity >= 30:
		factors = append(factors, fmt.Sprintf("Moderate frog activity (%.0f calls/min)", a.CallDensity))
	default:
		factors = append(factors, fmt.Sprintf("Sparse frog activity (%.0f calls/min)", a.CallDensity))
	}

	factors = append(factors,
		fmt.Sprintf("Biodiversity index %.2f", a.BiodiversityScore),
		fmt.Sprintf("Ecosystem health assessed as %s", a.EcosystemHealth))

	if a.NoisePollution > 0.5 {
		factors = append(factors, "High background noise in the recording")
	}
	if a.NoiseType != "" && a.NoiseType != "unknown" {
		factors = append(factors, fmt.Sprintf("Background noise classified as %s", a.NoiseType))
	}
	if speciesFellBack {
		factors = append(factors, "Species call analysis used estimated values")
	}
	if envFellBack {
		factors = append(factors, "Habitat analysis used estimated values")
	}
	return factors
}

// buildRecommendations merges status guidance with the environmental
// analyzer's suggestions, deduplicated in order.
func buildRecommendations(a *datastore.Assessment, envRecs []string) []string {
	var recs []string
	switch a.Status {
	case StatusAlert:
		recs = append(recs,
			"Test water chemistry directly as soon as possible",
			"Check for runoff, algae blooms or other pollution sources")
	case StatusWarning:
		recs = append(recs,
			"Monitor this pond more frequently over the next week")
	default:
		recs = append(recs,
			"Conditions look stable, continue routine monitoring")
	}
	recs = append(recs, envRecs...)

	seen := make(map[string]bool, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
