package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/clinictrack/emgcore/internal/analytics"
	"github.com/clinictrack/emgcore/internal/c3d"
	"github.com/clinictrack/emgcore/internal/contraction"
	"github.com/clinictrack/emgcore/internal/emgerrors"
	"github.com/clinictrack/emgcore/internal/mvc"
	"github.com/clinictrack/emgcore/internal/scoring"
	"github.com/clinictrack/emgcore/internal/signal"
	"github.com/clinictrack/emgcore/internal/telemetry/events"
	"github.com/clinictrack/emgcore/internal/telemetry/logging"
	"github.com/clinictrack/emgcore/pkg/models"
)

// pipelineVersion is recorded on every ProcessingParameters row so a
// recalculation can tell which conditioning/detection revision produced it.
const pipelineVersion = "emgcore-1"

// defaultSamplingRateHz is used only when a C3D file omits the analog rate
// entirely (§4.1); it is never substituted over a value the file declares.
const defaultSamplingRateHz = 1000

// Orchestrator is the C7 state machine: the only component permitted to
// move a session between pending/processing/completed/failed and the only
// caller of Store.WriteResults.
type Orchestrator struct {
	Store      Store
	Cache      Cache
	Downloader Downloader
	Log        logging.Logger
	Events     events.Bus

	SignalConfig      signal.Config
	ContractionConfig contraction.Config
	AnalyticsConfig   analytics.Config
}

// New wires an Orchestrator with process-level conditioning/detection
// defaults (§6.5). Callers override the embedded Config fields directly for
// a session-specific run.
func New(store Store, cache Cache, downloader Downloader, log logging.Logger, bus events.Bus) *Orchestrator {
	return &Orchestrator{
		Store:             store,
		Cache:             cache,
		Downloader:        downloader,
		Log:               log,
		Events:            bus,
		SignalConfig:      signal.Defaults(),
		ContractionConfig: contraction.Defaults(),
		AnalyticsConfig:   analytics.Defaults(),
	}
}

// CreateSession registers a session for raw file bytes, deduping by content
// hash. A hash collision returns the existing row untouched rather than
// erroring (§4.7, §5 dedup concurrency).
func (o *Orchestrator) CreateSession(ctx context.Context, raw []byte, patientID, therapistID string) (*models.Session, bool, error) {
	hash := contentHash(raw)
	candidate := &models.Session{
		ContentSHA:  hash,
		Status:      models.SessionPending,
		PatientID:   patientID,
		TherapistID: therapistID,
	}
	result, created, err := o.Store.CreateSession(ctx, hash, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("orchestrator: create session: %w", err)
	}
	o.publish(ctx, result.ID, "session_created", map[string]string{
		"status":  string(result.Status),
		"created": boolLabel(created),
	})
	return result, created, nil
}

func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ProcessSession runs C1->C6 for a pending session and transitions it to
// completed or failed. When raw is nil, fileRef is resolved through
// Downloader (§5); the worker's webhook handler downloads the object itself
// and passes raw, and synchronous uploads use RunEphemeral instead of this
// method. Every write to the Store happens once, after the
// full pipeline succeeds, so partial results are never visible (§5 ordering
// guarantee).
func (o *Orchestrator) ProcessSession(ctx context.Context, sessionID, fileRef string, raw []byte, settings models.SessionSettings, bfr []models.BFRMonitoring) error {
	session, err := o.Store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("orchestrator: load session %s: %w", sessionID, err)
	}

	if raw == nil {
		raw, err = o.Downloader.Download(ctx, fileRef)
		if err != nil {
			return o.fail(ctx, session, emgerrors.Processing("orchestrator", "download failed", err))
		}
	}

	if err := o.Store.UpdateStatus(ctx, session.ID, models.SessionProcessing, nil); err != nil {
		return fmt.Errorf("orchestrator: mark processing: %w", err)
	}
	o.publish(ctx, session.ID, "session_processing", nil)

	results, procErr := o.runPipeline(session.ID, raw, settings, bfr)
	if procErr != nil {
		return o.fail(ctx, session, procErr)
	}

	if err := o.Store.WriteResults(ctx, *results); err != nil {
		return o.fail(ctx, session, emgerrors.Processing("orchestrator", "write results", err))
	}
	if err := o.Store.UpdateStatus(ctx, session.ID, models.SessionCompleted, nil); err != nil {
		return fmt.Errorf("orchestrator: mark completed: %w", err)
	}
	o.publish(ctx, session.ID, "session_completed", nil)

	o.cacheBestEffort(ctx, session.ID, results)
	return nil
}

// RunEphemeral executes the full C1-C6 pipeline over raw file bytes and
// returns the resulting analytics and scores without creating, updating, or
// writing anything to the Store (§6.1 "Synchronous upload ... No
// persistence"). sessionID is used only to label the returned results.
func (o *Orchestrator) RunEphemeral(sessionID string, raw []byte, settings models.SessionSettings, bfr []models.BFRMonitoring) (*SessionResults, error) {
	return o.runPipeline(sessionID, raw, settings, bfr)
}

// fail classifies err into the §7 taxonomy, persists the failure, and
// publishes a status event. It always returns the original error so the
// caller (worker pool) can log/retry per its own policy.
func (o *Orchestrator) fail(ctx context.Context, session *models.Session, err error) error {
	procErr := classify(session, err)
	if uerr := o.Store.UpdateStatus(ctx, session.ID, models.SessionFailed, procErr); uerr != nil {
		if o.Log != nil {
			o.Log.ErrorCtx(ctx, "failed to persist session failure", "session_id", session.ID, "error", uerr.Error())
		}
	}
	o.publish(ctx, session.ID, "session_failed", map[string]string{"kind": procErr.Kind})
	return err
}

// classify turns a raised error into the §7 structured ProcessingError,
// backstopping whatever the raising site left unset (e.g. the filename a
// low-level decoder stage never sees) from the session it failed against.
func classify(session *models.Session, err error) *models.ProcessingError {
	e, ok := emgerrors.As(err)
	if !ok {
		return &models.ProcessingError{Kind: string(emgerrors.KindProcessingFailure), Message: err.Error()}
	}
	pe := &models.ProcessingError{Kind: string(e.Kind), Message: e.Error()}
	switch e.Kind {
	case emgerrors.KindCorruption:
		detail := e.CorruptionDetail
		if detail == nil {
			detail = &models.CorruptionDetail{}
		}
		if detail.Filename == "" {
			detail.Filename = sessionFilename(session)
		}
		if detail.TechnicalNote == "" {
			detail.TechnicalNote = e.Message
		}
		if len(detail.UserGuidance) == 0 {
			detail.UserGuidance = []string{
				"The uploaded file could not be parsed as a valid C3D container.",
				"Re-export the recording from the source device and upload it again.",
			}
		}
		pe.Corruption = detail
	case emgerrors.KindInsufficientDuration:
		detail := e.ValidationDetail
		if detail == nil {
			detail = &models.EMGValidationFail{Reason: e.Message}
		}
		pe.InsufficientEMG = detail
	}
	return pe
}

func sessionFilename(session *models.Session) string {
	if session == nil {
		return ""
	}
	if session.Code != "" {
		return session.Code
	}
	return session.ID
}

// muscleChannels groups a channel pair (the amplitude "Raw" envelope and the
// optional "activated" timing sibling) under their shared base name (§4.1).
type muscleChannels struct {
	envelope  *signal.Conditioned
	activated *signal.Conditioned
}

// runPipeline executes C1 (decode) through C6 (scoring) over already-fetched
// file bytes. It never touches the Store; ProcessSession owns every write.
func (o *Orchestrator) runPipeline(sessionID string, raw []byte, settings models.SessionSettings, bfr []models.BFRMonitoring) (*SessionResults, error) {
	file, err := c3d.Decode(raw)
	if err != nil {
		return nil, err
	}

	samplingRateHz := file.Header.SamplingRateHz
	if samplingRateHz <= 0 {
		samplingRateHz = defaultSamplingRateHz
	}

	muscles := map[string]*muscleChannels{}
	order := make([]string, 0, len(file.ChannelLabels))

	for i, label := range file.ChannelLabels {
		cond, err := signal.Condition(o.SignalConfig, label, file.AnalogChannels[i], samplingRateHz)
		if err != nil {
			return nil, err
		}

		base := models.BaseName(label)
		m, ok := muscles[base]
		if !ok {
			m = &muscleChannels{}
			muscles[base] = m
			order = append(order, base)
		}
		if strings.HasSuffix(label, " activated") {
			m.activated = cond
		} else {
			m.envelope = cond
		}
	}

	thresholdFraction := asFraction(settings.MVCThresholdPct)
	durationThresholdMS := settings.DurationThresholdMS

	var channelAnalytics []models.ChannelAnalytics
	now := time.Now()

	for _, base := range order {
		m := muscles[base]
		if m.envelope == nil {
			// only an "activated" timing channel exists with no amplitude
			// sibling; nothing to score or detect against (§4.1).
			continue
		}

		resolution := analytics.ResolveMVCThreshold(buildMVCInputs(base, settings, thresholdFraction), m.envelope.Rectified)

		var estimate mvc.Estimation
		if resolution.EstimationMethod == "explicit" {
			estimate = mvc.Estimation{
				ThresholdValue:      resolution.Threshold,
				ThresholdPercentage: thresholdFraction,
				EstimationMethod:    resolution.EstimationMethod,
				Timestamp:           now,
			}
			if v, ok := settings.MuscleMVCValues[base]; ok {
				estimate.MVCValue = v
			} else if settings.GlobalMVCValue != nil {
				estimate.MVCValue = *settings.GlobalMVCValue
			}
		} else {
			estimate = mvc.Estimate([]mvc.ChannelInput{{
				ChannelName: base,
				RMSEnvelope: m.envelope.Envelope,
			}}, thresholdFraction, now)[base]
		}
		threshold := estimate.ThresholdValue

		var activatedEnvelope []float64
		if m.activated != nil {
			activatedEnvelope = m.activated.Envelope
		}

		var durationThresholdPtr *float64
		if durationThresholdMS > 0 {
			v := float64(durationThresholdMS)
			durationThresholdPtr = &v
		}

		detectInput := contraction.Input{
			Envelope:            m.envelope.Envelope,
			SamplingRateHz:      samplingRateHz,
			MVCThreshold:        &threshold,
			DurationThresholdMS: durationThresholdPtr,
			Config:              o.ContractionConfig,
		}
		if activatedEnvelope != nil {
			detectInput.Activated = activatedEnvelope
		}

		result, err := contraction.Detect(detectInput)
		if err != nil {
			return nil, err
		}

		ca := analytics.Compute(o.AnalyticsConfig, base, m.envelope.Rectified, m.envelope.Envelope, samplingRateHz)
		ca.TotalContractions = result.Total
		ca.MVCCompliantCount = result.MVCCompliantCount
		ca.DurationCompliantCount = result.DurationCompliantCount
		ca.GoodCount = result.GoodCount
		ca.Contractions = result.Contractions
		ca.Amplitude, ca.Duration = analytics.AggregateContractions(result.Contractions)
		ca.MVCValue = estimate.MVCValue
		ca.MVCEstimationMethod = estimate.EstimationMethod
		ca.SessionID = sessionID
		if verr := ca.Validate(); verr != nil {
			return nil, emgerrors.Processing("analytics", "channel analytics invariant violated for "+base, verr)
		}
		channelAnalytics = append(channelAnalytics, ca)
	}

	metrics := aggregateMetrics(channelAnalytics, settings, bfr)
	scoringConfig := models.DefaultScoringConfiguration()
	scores := scoring.Score(scoringConfig, metrics, sessionID)
	scores.ScoringConfigID = scoringConfig.ID

	params := models.ProcessingParameters{
		SessionID:          sessionID,
		SamplingRateHz:     samplingRateHz,
		FilterLowCutoffHz:  o.SignalConfig.LowCutoffHz,
		FilterHighCutoffHz: o.SignalConfig.HighCutoffHz,
		FilterOrder:        o.SignalConfig.FilterOrder,
		MVCThresholdPct:    thresholdFraction,
		PipelineVersion:    pipelineVersion,
	}

	sessionDate, ok := file.SessionTime()
	if !ok {
		sessionDate = time.Now().UTC()
	}

	return &SessionResults{
		SessionID:    sessionID,
		Params:       params,
		Analytics:    channelAnalytics,
		Settings:     settings,
		BFR:          bfr,
		Scores:       scores,
		GameMetadata: file.GameMetadata(),
		SessionDate:  sessionDate,
	}, nil
}

// reclassifyChannel re-runs Contraction.Classify over ca's already-detected
// contractions under settings' thresholds (§4.7): recalculation never
// re-parses the source file or reruns C1-C3, so it must produce identical
// flags to the original C3 pass when given identical thresholds. The MVC
// threshold is re-derived from ca's stored MVCValue (the amplitude backend
// estimation or an explicit override last resolved to), honoring any new
// per-muscle/global override in settings ahead of that stored value.
func reclassifyChannel(ca *models.ChannelAnalytics, settings models.SessionSettings) {
	threshold := resolveRecalcMVCThreshold(ca.ChannelName, ca.MVCValue, settings)

	var durationThresholdPtr *float64
	if settings.DurationThresholdMS > 0 {
		v := float64(settings.DurationThresholdMS)
		durationThresholdPtr = &v
	}

	var mvcCompliant, durationCompliant, good int
	for i := range ca.Contractions {
		c := &ca.Contractions[i]
		c.Classify(&threshold, durationThresholdPtr)
		if c.MeetsMVC {
			mvcCompliant++
		}
		if c.MeetsDuration {
			durationCompliant++
		}
		if c.IsGood {
			good++
		}
	}
	ca.MVCCompliantCount = mvcCompliant
	ca.DurationCompliantCount = durationCompliant
	ca.GoodCount = good
	ca.Amplitude, ca.Duration = analytics.AggregateContractions(ca.Contractions)
}

// resolveRecalcMVCThreshold mirrors buildMVCInputs' §4.4 precedence but
// without the raw signal a fresh C4 pass would use for backend estimation:
// storedMVCValue (the original estimate, explicit or backend) stands in for
// that step so unchanged settings reproduce the original threshold exactly.
func resolveRecalcMVCThreshold(base string, storedMVCValue float64, settings models.SessionSettings) float64 {
	pctFraction := asFraction(settings.MVCThresholdPct)
	mvcValue := storedMVCValue
	if v, ok := settings.MuscleMVCValues[base]; ok {
		mvcValue = v
		if p, ok := settings.MuscleThresholdPercentages[base]; ok {
			pctFraction = asFraction(p)
		}
	} else if settings.GlobalMVCValue != nil {
		mvcValue = *settings.GlobalMVCValue
	}
	return mvcValue * pctFraction
}

// buildMVCInputs assembles the §4.4 four-step resolution inputs for one
// muscle from the session's explicit per-muscle/global overrides, falling
// back to the session's global threshold percentage at every step.
func buildMVCInputs(base string, settings models.SessionSettings, globalThresholdFraction float64) analytics.MVCInputs {
	in := analytics.MVCInputs{DefaultThresholdPct: globalThresholdFraction}
	if v, ok := settings.MuscleMVCValues[base]; ok {
		in.MuscleMVCValue = &v
	}
	if v, ok := settings.MuscleThresholdPercentages[base]; ok {
		p := asFraction(v)
		in.MuscleThresholdPct = &p
	}
	in.GlobalMVCValue = settings.GlobalMVCValue
	gp := globalThresholdFraction
	in.GlobalThresholdPct = &gp
	return in
}

// asFraction normalizes a threshold expressed either as a percent (75) or a
// fraction (0.75) into a fraction, matching mvc.Estimate's convention.
func asFraction(pct float64) float64 {
	if pct == 0 {
		return analytics.Defaults().MVCThresholdPct
	}
	if pct > 1 {
		return pct / 100
	}
	return pct
}

// isLeft / isRight classify a muscle base name by the side naming convention
// used throughout the original game-metadata channel labels (§4.1).
func isLeft(base string) bool  { return strings.Contains(strings.ToLower(base), "left") }
func isRight(base string) bool { return strings.Contains(strings.ToLower(base), "right") }

// aggregateMetrics rolls per-channel analytics into the bilateral counters
// scoring.Score expects (§4.6).
func aggregateMetrics(channels []models.ChannelAnalytics, settings models.SessionSettings, bfr []models.BFRMonitoring) models.SessionMetrics {
	m := models.SessionMetrics{ExpectedContractionsPerMuscle: settings.ExpectedContractionsPerMuscle}
	for _, ca := range channels {
		switch {
		case isLeft(ca.ChannelName):
			m.LeftTotal += ca.TotalContractions
			m.LeftMVCCompliant += ca.MVCCompliantCount
			m.LeftDurationCompliant += ca.DurationCompliantCount
		case isRight(ca.ChannelName):
			m.RightTotal += ca.TotalContractions
			m.RightMVCCompliant += ca.MVCCompliantCount
			m.RightDurationCompliant += ca.DurationCompliantCount
		}
	}
	if settings.BFREnabled {
		for _, b := range bfr {
			v := b.ActualPressureAOP
			m.BFRPressureAOP = &v
			break
		}
	}
	return m
}

// cacheBestEffort populates the analytics cache after a successful write. A
// cache failure is logged, never surfaced: the session already completed
// successfully from the caller's point of view (§4.9).
func (o *Orchestrator) cacheBestEffort(ctx context.Context, sessionID string, results *SessionResults) {
	if o.Cache == nil {
		return
	}
	channels := make(map[string]models.ChannelAnalytics, len(results.Analytics))
	names := make([]string, 0, len(results.Analytics))
	for _, ca := range results.Analytics {
		channels[ca.ChannelName] = ca
		names = append(names, ca.ChannelName)
	}
	entry := models.AnalyticsCacheEntry{
		SessionID: sessionID,
		Channels:  channels,
		Summary: models.AnalyticsCacheSummary{
			Channels:          names,
			TotalChannels:     len(channels),
			OverallCompliance: results.Scores.Compliance,
			ProcessedAt:       time.Now(),
		},
		CacheVersion: pipelineVersion,
		CachedAt:     time.Now(),
	}
	if err := o.Cache.Set(ctx, sessionID, entry); err != nil && o.Log != nil {
		o.Log.WarnCtx(ctx, "analytics cache write failed", "session_id", sessionID, "error", err.Error())
	}
}

func (o *Orchestrator) publish(ctx context.Context, sessionID, eventType string, labels map[string]string) {
	if o.Events == nil {
		return
	}
	o.Events.PublishCtx(ctx, events.Event{
		Category: events.CategorySession,
		Type:     eventType,
		Labels:   mergeLabel(labels, "session_id", sessionID),
	})
}

func mergeLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

// RecalculateFromExisting recomputes performance scores from the
// already-persisted channel analytics for a session, without re-parsing the
// source file or re-running C1-C4 (§4.7). Used when a clinician edits
// session settings or BFR readings after the fact.
func (o *Orchestrator) RecalculateFromExisting(ctx context.Context, sessionID string, settings models.SessionSettings, bfr []models.BFRMonitoring) (*models.PerformanceScores, error) {
	session, err := o.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load session %s: %w", sessionID, err)
	}
	if session.Status != models.SessionCompleted {
		return nil, emgerrors.Validation("orchestrator", "cannot recalculate a session that has not completed processing")
	}

	channels, err := o.Store.GetChannelAnalytics(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load channel analytics: %w", err)
	}

	for i := range channels {
		reclassifyChannel(&channels[i], settings)
		if verr := channels[i].Validate(); verr != nil {
			return nil, emgerrors.Processing("orchestrator", "recalculated analytics invariant violated for "+channels[i].ChannelName, verr)
		}
	}

	scoringConfigID := session.ScoringConfigID
	var scoringConfig models.ScoringConfiguration
	if scoringConfigID != "" {
		cfg, err := o.Store.GetScoringConfiguration(ctx, scoringConfigID)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load scoring configuration: %w", err)
		}
		scoringConfig = *cfg
	} else {
		scoringConfig = models.DefaultScoringConfiguration()
	}

	metrics := aggregateMetrics(channels, settings, bfr)
	scores := scoring.Score(scoringConfig, metrics, sessionID)
	scores.ScoringConfigID = scoringConfig.ID

	results := SessionResults{
		SessionID: sessionID,
		Analytics: channels,
		Settings:  settings,
		BFR:       bfr,
		Scores:    scores,
	}
	if err := o.Store.WriteResults(ctx, results); err != nil {
		return nil, fmt.Errorf("orchestrator: write recalculated results: %w", err)
	}
	o.publish(ctx, sessionID, "session_recalculated", nil)
	return &scores, nil
}
