package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pondwatch/pondwatch-go/internal/analysis"
	"github.com/pondwatch/pondwatch-go/internal/analyzer"
	"github.com/pondwatch/pondwatch-go/internal/audio"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/notification"
)

// AssessmentDTO is the JSON shape of one assessment.
type AssessmentDTO struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Filename     string  `json:"filename"`
	Duration     float64 `json:"duration_seconds"`
	SampleRate   int     `json:"sample_rate"`
	Format       string  `json:"format"`
	QualityScore float64 `json:"quality_score"`

	NoiseType        string  `json:"noise_type,omitempty"`
	NoiseReductionDB float64 `json:"noise_reduction_db"`

	CallDensity         float64      `json:"call_density"`
	CallConfidence      float64      `json:"call_confidence"`
	WaterQualityHint    string       `json:"water_quality_hint"`
	SpeciesUsedFallback bool         `json:"species_used_fallback"`
	Species             []SpeciesDTO `json:"species,omitempty"`

	BiodiversityScore       float64 `json:"biodiversity_score"`
	HabitatQuality          string  `json:"habitat_quality"`
	NoisePollution          float64 `json:"noise_pollution"`
	EcosystemHealth         string  `json:"ecosystem_health"`
	EnvironmentUsedFallback bool    `json:"environment_used_fallback"`

	OverallScore    float64  `json:"overall_score"`
	Status          string   `json:"status"`
	Factors         []string `json:"factors,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	FieldName string   `json:"field_name,omitempty"`
}

// SpeciesDTO is one detected species in an assessment.
type SpeciesDTO struct {
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Calls          int     `json:"calls"`
	Confidence     float64 `json:"confidence"`
}

// ToAssessmentDTO converts a stored assessment into its JSON shape.
func ToAssessmentDTO(a *datastore.Assessment) *AssessmentDTO {
	dto := &AssessmentDTO{
		ID:                      a.PublicID,
		CreatedAt:               a.CreatedAt,
		Filename:                a.Filename,
		Duration:                a.Duration,
		SampleRate:              a.SampleRate,
		Format:                  a.Format,
		QualityScore:            a.QualityScore,
		NoiseType:               a.NoiseType,
		NoiseReductionDB:        a.NoiseReductionDB,
		CallDensity:             a.CallDensity,
		CallConfidence:          a.CallConfidence,
		WaterQualityHint:        a.WaterQualityHint,
		SpeciesUsedFallback:     a.SpeciesUsedFallback,
		BiodiversityScore:       a.BiodiversityScore,
		HabitatQuality:          a.HabitatQuality,
		NoisePollution:          a.NoisePollution,
		EcosystemHealth:         a.EcosystemHealth,
		EnvironmentUsedFallback: a.EnvironmentUsedFallback,
		OverallScore:            a.OverallScore,
		Status:                  a.Status,
		Factors:                 a.Factors,
		Recommendations:         a.Recommendations,
		Latitude:                a.Latitude,
		Longitude:               a.Longitude,
		FieldName:               a.FieldName,
	}
	for i := range a.Species {
		s := &a.Species[i]
		dto.Species = append(dto.Species, SpeciesDTO{
			CommonName:     s.CommonName,
			ScientificName: s.ScientificName,
			Calls:          s.Calls,
			Confidence:     s.Confidence,
		})
	}
	return dto
}

// AnalysisResponse is the full result of one analysis request.
type AnalysisResponse struct {
	Assessment    *AssessmentDTO          `json:"assessment"`
	Preprocessing *audio.Result           `json:"preprocessing"`
	Validation    audio.Validation        `json:"validation"`
	Deliveries    []notification.Delivery `json:"deliveries,omitempty"`
	AlertsRaised  int                     `json:"alerts_raised"`
}

// CreateAnalysis accepts an audio upload and runs the full pipeline:
// preprocessing, denoising, both analyzers, fusion, persistence, alerting
// and notification dispatch.
func (c *Controller) CreateAnalysis(ctx echo.Context) error {
	if !c.analysisSem.TryAcquire(1) {
		return c.HandleError(ctx, nil, "analysis capacity exhausted, retry shortly",
			http.StatusServiceUnavailable)
	}
	defer c.analysisSem.Release(1)

	file, err := ctx.FormFile("audio")
	if err != nil {
		return c.HandleError(ctx, err, "missing audio file upload", http.StatusBadRequest)
	}

	maxBytes := int64(c.Settings.Server.MaxUploadSizeMB) << 20
	if maxBytes > 0 && file.Size > maxBytes {
		return c.HandleError(ctx, nil, "audio upload exceeds the size limit",
			http.StatusRequestEntityTooLarge)
	}

	src, err := file.Open()
	if err != nil {
		return c.HandleError(ctx, err, "reading audio upload", http.StatusBadRequest)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.HandleError(ctx, err, "reading audio upload", http.StatusBadRequest)
	}

	prep, err := c.preprocessor.Process(data, file.Filename)
	if err != nil {
		return c.HandleError(ctx, err, "audio preprocessing failed", http.StatusUnprocessableEntity)
	}
	validation := c.preprocessor.ValidateForAnalysis(prep.Metadata, prep.QualityScore)
	if !validation.Suitable {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":           "audio is not suitable for analysis",
			"warnings":        validation.Warnings,
			"recommendations": validation.Recommendations,
		})
	}

	samples := prep.Samples
	req := &analysis.Request{
		Samples:      samples,
		SampleRate:   c.Settings.Audio.SampleRate,
		Filename:     file.Filename,
		Duration:     prep.Metadata.Duration,
		Format:       string(prep.Metadata.Format),
		QualityScore: prep.QualityScore,
		UserID:       ctx.FormValue("user_id"),
	}

	if ctx.FormValue("denoise") != "false" {
		if dn, err := c.denoiser.Denoise(samples, file.Filename); err != nil {
			c.log.Warn("denoising failed, analyzing raw audio",
				"filename", file.Filename, "error", err)
		} else {
			req.Samples = dn.Samples
			req.NoiseType = string(dn.Profile.Type)
			req.NoiseReductionDB = dn.NoiseReductionDB
		}
	}

	if loc := parseLocation(ctx); loc != nil {
		req.Location = loc
	}
	if fieldID := ctx.FormValue("field_id"); fieldID != "" {
		if err := c.resolveField(fieldID, req); err != nil {
			return c.HandleError(ctx, err, "unknown field", http.StatusBadRequest)
		}
	}

	result, err := c.orchestrator.Process(ctx.Request().Context(), req)
	if err != nil {
		// The assessment is still complete; only persistence failed, so it
		// rides along with the error.
		c.log.Error("persisting assessment failed", "error", err)
		resp := map[string]any{"error": "storing the assessment failed"}
		if result != nil && result.Assessment != nil {
			resp["assessment"] = ToAssessmentDTO(result.Assessment)
		}
		return ctx.JSON(http.StatusInternalServerError, resp)
	}

	return ctx.JSON(http.StatusCreated, &AnalysisResponse{
		Assessment:    ToAssessmentDTO(result.Assessment),
		Preprocessing: prep,
		Validation:    validation,
		Deliveries:    result.Deliveries,
		AlertsRaised:  len(result.Alerts),
	})
}

func parseLocation(ctx echo.Context) *analyzer.Location {
	latStr, lonStr := ctx.FormValue("latitude"), ctx.FormValue("longitude")
	if latStr == "" || lonStr == "" {
		return nil
	}
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil {
		return nil
	}
	return &analyzer.Location{Latitude: lat, Longitude: lon}
}

func (c *Controller) resolveField(raw string, req *analysis.Request) error {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return err
	}
	fields, err := c.DS.GetFields()
	if err != nil {
		return err
	}
	for i := range fields {
		if fields[i].ID == uint(id) {
			fid := fields[i].ID
			req.FieldID = &fid
			req.FieldName = fields[i].Name
			if req.Location == nil && fields[i].Latitude != nil && fields[i].Longitude != nil {
				req.Location = &analyzer.Location{
					Latitude:  *fields[i].Latitude,
					Longitude: *fields[i].Longitude,
				}
			}
			return nil
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "field not found")
}

// ListAnalyses returns recent assessments, newest first.
func (c *Controller) ListAnalyses(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 20, 50)
	assessments, err := c.DS.GetRecentAssessments(limit)
	if err != nil {
		return c.HandleError(ctx, err, "listing assessments failed", http.StatusInternalServerError)
	}

	dtos := make([]*AssessmentDTO, 0, len(assessments))
	for i := range assessments {
		dtos = append(dtos, ToAssessmentDTO(&assessments[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"analyses": dtos,
		"count":    len(dtos),
	})
}

// GetAnalysis returns one assessment by public ID.
func (c *Controller) GetAnalysis(ctx echo.Context) error {
	a, err := c.DS.GetAssessment(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "assessment not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, ToAssessmentDTO(&a))
}

// AnalysisStats summarizes recent activity: daily run counts and the
// current status distribution of stored assessments.
func (c *Controller) AnalysisStats(ctx echo.Context) error {
	days := queryInt(ctx, "days", 30, 365)
	counts, err := c.DS.GetDailyCounts(days)
	if err != nil {
		return c.HandleError(ctx, err, "loading daily counts failed", http.StatusInternalServerError)
	}

	assessments, err := c.DS.GetRecentAssessments(50)
	if err != nil {
		return c.HandleError(ctx, err, "loading assessments failed", http.StatusInternalServerError)
	}

	total := 0
	daily := make([]map[string]any, 0, len(counts))
	for i := range counts {
		total += counts[i].Count
		daily = append(daily, map[string]any{
			"date":  counts[i].Date,
			"count": counts[i].Count,
		})
	}

	statuses := map[string]int{}
	var scoreSum float64
	for i := range assessments {
		statuses[assessments[i].Status]++
		scoreSum += assessments[i].OverallScore
	}
	avgScore := 0.0
	if len(assessments) > 0 {
		avgScore = scoreSum / float64(len(assessments))
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"total_analyses":      total,
		"daily_counts":        daily,
		"status_distribution": statuses,
		"average_score":       avgScore,
	})
}

func queryInt(ctx echo.Context, name string, def, max int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
