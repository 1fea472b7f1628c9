// Package store implements the Artifact Store (C8): the relational
// persistence façade the orchestrator is the sole writer of. Composite-key
// uniqueness, CHECK constraints, and the scoring_config_id immutability
// guarantee live in the schema (see migrations.go); this package is a thin
// pgx wrapper enforcing the same invariants defensively in Go.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinictrack/emgcore/internal/orchestrator"
	"github.com/clinictrack/emgcore/pkg/models"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint breach
// (used to detect the content-hash dedup race, §5 "dedup concurrency").
const uniqueViolation = "23505"

// Store is the pgx-backed implementation of orchestrator.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and verifies reachability with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

var _ orchestrator.Store = (*Store)(nil)

// CreateSession inserts a session keyed by content hash. On a unique-
// constraint violation it re-reads and returns the existing row instead of
// erroring (§5 "insert-catch-reread dedup loop").
func (s *Store) CreateSession(ctx context.Context, contentHash string, session *models.Session) (*models.Session, bool, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	patientOrdinal, sessionSeq, err := s.allocateSessionCode(ctx, session.PatientID)
	if err != nil {
		return nil, false, fmt.Errorf("store: allocate session code: %w", err)
	}
	code := orchestrator.FormatSessionCode(patientOrdinal, sessionSeq)

	const q = `
INSERT INTO sessions (id, code, content_sha256, status, patient_id, therapist_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (content_sha256) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, id, code, contentHash, string(models.SessionPending), session.PatientID, session.TherapistID, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, gerr := s.GetSessionByHash(ctx, contentHash)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("store: insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, gerr := s.GetSessionByHash(ctx, contentHash)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}

	return &models.Session{
		ID:          id,
		Code:        code,
		ContentSHA:  contentHash,
		Status:      models.SessionPending,
		PatientID:   session.PatientID,
		TherapistID: session.TherapistID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, true, nil
}

// allocateSessionCode atomically assigns the next per-patient sequence
// number (§6.4). Patient ordinal is derived from a process-wide sequence on
// first sight of a given patient_id.
func (s *Store) allocateSessionCode(ctx context.Context, patientID string) (patientOrdinal, sessionSeq int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const ordinalQ = `
INSERT INTO patient_ordinals (patient_id, ordinal)
VALUES ($1, (SELECT COALESCE(MAX(ordinal), 0) + 1 FROM patient_ordinals))
ON CONFLICT (patient_id) DO UPDATE SET patient_id = EXCLUDED.patient_id
RETURNING ordinal`
	if err := tx.QueryRow(ctx, ordinalQ, patientID).Scan(&patientOrdinal); err != nil {
		return 0, 0, err
	}

	const seqQ = `
INSERT INTO patient_session_sequences (patient_id, next_seq)
VALUES ($1, 2)
ON CONFLICT (patient_id) DO UPDATE SET next_seq = patient_session_sequences.next_seq + 1
RETURNING next_seq - 1`
	if err := tx.QueryRow(ctx, seqQ, patientID).Scan(&sessionSeq); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return patientOrdinal, sessionSeq, nil
}

// UpdateStatus transitions a session's lifecycle status and, on failure,
// records the structured processing error (§7).
func (s *Store) UpdateStatus(ctx context.Context, sessionID string, status models.SessionStatus, procErr *models.ProcessingError) error {
	const q = `
UPDATE sessions
SET status = $2, processing_error_kind = $3, processing_error_message = $4, updated_at = $5
WHERE id = $1`
	var kind, message *string
	if procErr != nil {
		kind, message = &procErr.Kind, &procErr.Message
	}
	tag, err := s.pool.Exec(ctx, q, sessionID, string(status), kind, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: session %s not found", sessionID)
	}
	return nil
}

// WriteResults performs every session-completion write as a single
// transaction so the results become visible together (§5 ordering
// guarantee). scoring_config_id is set only if the session does not already
// have one, enforcing the immutability invariant in Go as a backstop to the
// schema-level trigger.
func (s *Store) WriteResults(ctx context.Context, results orchestrator.SessionResults) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin write-results tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO processing_parameters (session_id, sampling_rate_hz, filter_low_cutoff_hz, filter_high_cutoff_hz, filter_order, rms_window_samples, rms_overlap_pct, mvc_window_samples, mvc_threshold_pct, pipeline_version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (session_id) DO UPDATE SET
  sampling_rate_hz = EXCLUDED.sampling_rate_hz, filter_low_cutoff_hz = EXCLUDED.filter_low_cutoff_hz,
  filter_high_cutoff_hz = EXCLUDED.filter_high_cutoff_hz, filter_order = EXCLUDED.filter_order,
  rms_window_samples = EXCLUDED.rms_window_samples, rms_overlap_pct = EXCLUDED.rms_overlap_pct,
  mvc_window_samples = EXCLUDED.mvc_window_samples, mvc_threshold_pct = EXCLUDED.mvc_threshold_pct,
  pipeline_version = EXCLUDED.pipeline_version`,
		results.Params.SessionID, results.Params.SamplingRateHz, results.Params.FilterLowCutoffHz,
		results.Params.FilterHighCutoffHz, results.Params.FilterOrder, results.Params.RMSWindowSamples,
		results.Params.RMSOverlapPct, results.Params.MVCWindowSamples, results.Params.MVCThresholdPct,
		results.Params.PipelineVersion); err != nil {
		return fmt.Errorf("store: write processing parameters: %w", err)
	}

	for _, ca := range results.Analytics {
		if err := writeChannelAnalytics(ctx, tx, ca); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO session_settings (session_id, mvc_threshold_pct, duration_threshold_ms, expected_contractions_per_muscle, bfr_enabled)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (session_id) DO UPDATE SET
  mvc_threshold_pct = EXCLUDED.mvc_threshold_pct, duration_threshold_ms = EXCLUDED.duration_threshold_ms,
  expected_contractions_per_muscle = EXCLUDED.expected_contractions_per_muscle, bfr_enabled = EXCLUDED.bfr_enabled`,
		results.Settings.SessionID, results.Settings.MVCThresholdPct, results.Settings.DurationThresholdMS,
		results.Settings.ExpectedContractionsPerMuscle, results.Settings.BFREnabled); err != nil {
		return fmt.Errorf("store: write session settings: %w", err)
	}

	for _, b := range results.BFR {
		if _, err := tx.Exec(ctx, `
INSERT INTO bfr_monitoring (session_id, channel, target_pressure_aop, actual_pressure_aop, cuff_pressure_mmhg, systolic_bp, diastolic_bp, manual_compliance, safety_compliant, measurement_method, measured_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (session_id, channel) DO UPDATE SET
  target_pressure_aop = EXCLUDED.target_pressure_aop, actual_pressure_aop = EXCLUDED.actual_pressure_aop,
  cuff_pressure_mmhg = EXCLUDED.cuff_pressure_mmhg, systolic_bp = EXCLUDED.systolic_bp,
  diastolic_bp = EXCLUDED.diastolic_bp, manual_compliance = EXCLUDED.manual_compliance,
  safety_compliant = EXCLUDED.safety_compliant, measurement_method = EXCLUDED.measurement_method,
  measured_at = EXCLUDED.measured_at`,
			results.SessionID, string(b.Channel), b.TargetPressureAOP, b.ActualPressureAOP, b.CuffPressureMMHG,
			b.SystolicBP, b.DiastolicBP, b.ManualCompliance, b.SafetyCompliant, string(b.MeasurementMethod), b.MeasuredAt); err != nil {
			return fmt.Errorf("store: write bfr monitoring: %w", err)
		}
	}

	if err := writePerformanceScores(ctx, tx, results.Scores); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
UPDATE sessions
SET game_metadata = $2, session_date = $3, scoring_config_id = COALESCE(scoring_config_id, $4), updated_at = $5
WHERE id = $1`,
		results.SessionID, metadataToJSON(results.GameMetadata), results.SessionDate, results.Scores.ScoringConfigID, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: update session metadata: %w", err)
	}

	return tx.Commit(ctx)
}

func writeChannelAnalytics(ctx context.Context, tx pgx.Tx, ca models.ChannelAnalytics) error {
	_, err := tx.Exec(ctx, `
INSERT INTO channel_analytics (
  session_id, channel_name, total_contractions, mvc_compliant_count, duration_compliant_count, good_count,
  amplitude_mean, amplitude_max, amplitude_avg,
  duration_min_ms, duration_max_ms, duration_mean_ms, duration_total_under_tension_ms,
  rms_mean, rms_std, rms_valid, mav_mean, mav_std, mav_valid,
  mpf_mean, mpf_std, mpf_valid, mdf_mean, mdf_std, mdf_valid,
  fatigue_index_mean, fatigue_index_std, fatigue_index_valid,
  signal_quality_score, mvc_value, mvc_estimation_method,
  mpf_full, mdf_full, fatigue_index_full, contractions
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)
ON CONFLICT (session_id, channel_name) DO UPDATE SET
  total_contractions = EXCLUDED.total_contractions, mvc_compliant_count = EXCLUDED.mvc_compliant_count,
  duration_compliant_count = EXCLUDED.duration_compliant_count, good_count = EXCLUDED.good_count,
  amplitude_mean = EXCLUDED.amplitude_mean, amplitude_max = EXCLUDED.amplitude_max, amplitude_avg = EXCLUDED.amplitude_avg,
  duration_min_ms = EXCLUDED.duration_min_ms, duration_max_ms = EXCLUDED.duration_max_ms,
  duration_mean_ms = EXCLUDED.duration_mean_ms, duration_total_under_tension_ms = EXCLUDED.duration_total_under_tension_ms,
  rms_mean = EXCLUDED.rms_mean, rms_std = EXCLUDED.rms_std, rms_valid = EXCLUDED.rms_valid,
  mav_mean = EXCLUDED.mav_mean, mav_std = EXCLUDED.mav_std, mav_valid = EXCLUDED.mav_valid,
  mpf_mean = EXCLUDED.mpf_mean, mpf_std = EXCLUDED.mpf_std, mpf_valid = EXCLUDED.mpf_valid,
  mdf_mean = EXCLUDED.mdf_mean, mdf_std = EXCLUDED.mdf_std, mdf_valid = EXCLUDED.mdf_valid,
  fatigue_index_mean = EXCLUDED.fatigue_index_mean, fatigue_index_std = EXCLUDED.fatigue_index_std,
  fatigue_index_valid = EXCLUDED.fatigue_index_valid,
  signal_quality_score = EXCLUDED.signal_quality_score, mvc_value = EXCLUDED.mvc_value,
  mvc_estimation_method = EXCLUDED.mvc_estimation_method,
  mpf_full = EXCLUDED.mpf_full, mdf_full = EXCLUDED.mdf_full, fatigue_index_full = EXCLUDED.fatigue_index_full,
  contractions = EXCLUDED.contractions`,
		ca.SessionID, ca.ChannelName, ca.TotalContractions, ca.MVCCompliantCount, ca.DurationCompliantCount, ca.GoodCount,
		ca.Amplitude.Mean, ca.Amplitude.Max, ca.Amplitude.Avg,
		ca.Duration.MinMS, ca.Duration.MaxMS, ca.Duration.MeanMS, ca.Duration.TotalTimeUnderTensionMS,
		ca.RMS.Mean, ca.RMS.Std, ca.RMS.Valid, ca.MAV.Mean, ca.MAV.Std, ca.MAV.Valid,
		ca.MPF.Mean, ca.MPF.Std, ca.MPF.Valid, ca.MDF.Mean, ca.MDF.Std, ca.MDF.Valid,
		ca.FatigueIndexFI_NSM5.Mean, ca.FatigueIndexFI_NSM5.Std, ca.FatigueIndexFI_NSM5.Valid,
		ca.SignalQualityScore, ca.MVCValue, ca.MVCEstimationMethod,
		ca.MPFFull, ca.MDFFull, ca.FatigueIndexFullFI_NSM5, contractionsToJSON(ca.Contractions))
	if err != nil {
		return fmt.Errorf("store: write channel analytics for %s: %w", ca.ChannelName, err)
	}
	return nil
}

func writePerformanceScores(ctx context.Context, tx pgx.Tx, p models.PerformanceScores) error {
	_, err := tx.Exec(ctx, `
INSERT INTO performance_scores (
  session_id, overall, compliance, symmetry, effort, game,
  left_muscle_compliance, right_muscle_compliance,
  completion_rate_left, intensity_rate_left, duration_rate_left,
  completion_rate_right, intensity_rate_right, duration_rate_right,
  bfr_compliant, rpe_post_session, scoring_config_id, fallback_mode, scoring_error
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (session_id) DO UPDATE SET
  overall = EXCLUDED.overall, compliance = EXCLUDED.compliance, symmetry = EXCLUDED.symmetry,
  effort = EXCLUDED.effort, game = EXCLUDED.game,
  left_muscle_compliance = EXCLUDED.left_muscle_compliance, right_muscle_compliance = EXCLUDED.right_muscle_compliance,
  completion_rate_left = EXCLUDED.completion_rate_left, intensity_rate_left = EXCLUDED.intensity_rate_left,
  duration_rate_left = EXCLUDED.duration_rate_left, completion_rate_right = EXCLUDED.completion_rate_right,
  intensity_rate_right = EXCLUDED.intensity_rate_right, duration_rate_right = EXCLUDED.duration_rate_right,
  bfr_compliant = EXCLUDED.bfr_compliant, rpe_post_session = EXCLUDED.rpe_post_session,
  fallback_mode = EXCLUDED.fallback_mode, scoring_error = EXCLUDED.scoring_error`,
		p.SessionID, p.Overall, p.Compliance, p.Symmetry, p.Effort, p.Game,
		p.LeftMuscleCompliance, p.RightMuscleCompliance,
		p.CompletionRateLeft, p.IntensityRateLeft, p.DurationRateLeft,
		p.CompletionRateRight, p.IntensityRateRight, p.DurationRateRight,
		p.BFRCompliant, p.RPEPostSession, p.ScoringConfigID, p.FallbackMode, p.ScoringError)
	if err != nil {
		return fmt.Errorf("store: write performance scores: %w", err)
	}
	return nil
}

// GetSession loads a session by its surrogate ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.scanSession(ctx, "id", sessionID)
}

// GetSessionByHash loads a session by its content hash, the §4.8 "O(log n)
// or better" lookup (backed by a unique index in migrations.go).
func (s *Store) GetSessionByHash(ctx context.Context, contentHash string) (*models.Session, error) {
	return s.scanSession(ctx, "content_sha256", contentHash)
}

func (s *Store) scanSession(ctx context.Context, column, value string) (*models.Session, error) {
	q := fmt.Sprintf(`
SELECT id, code, content_sha256, status, patient_id, therapist_id, scoring_config_id,
       processing_error_kind, processing_error_message, session_date, created_at, updated_at
FROM sessions WHERE %s = $1`, column)

	var sess models.Session
	var status string
	var patientID, therapistID, scoringConfigID, procKind, procMessage *string
	var sessionDate *time.Time

	row := s.pool.QueryRow(ctx, q, value)
	if err := row.Scan(&sess.ID, &sess.Code, &sess.ContentSHA, &status, &patientID, &therapistID, &scoringConfigID,
		&procKind, &procMessage, &sessionDate, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: session not found (%s=%s)", column, value)
		}
		return nil, fmt.Errorf("store: scan session: %w", err)
	}

	sess.Status = models.SessionStatus(status)
	if patientID != nil {
		sess.PatientID = *patientID
	}
	if therapistID != nil {
		sess.TherapistID = *therapistID
	}
	if scoringConfigID != nil {
		sess.ScoringConfigID = *scoringConfigID
	}
	if procKind != nil {
		sess.ProcessingErrorMessage = &models.ProcessingError{Kind: *procKind, Message: deref(procMessage)}
	}
	if sessionDate != nil {
		sess.SessionDate = *sessionDate
	}
	return &sess, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListRecentSessions returns the most recently updated sessions, newest
// first, for the read-only operator console (C11).
func (s *Store) ListRecentSessions(ctx context.Context, limit int) ([]models.Session, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, code, content_sha256, status, patient_id, therapist_id, scoring_config_id,
       processing_error_kind, processing_error_message, session_date, created_at, updated_at
FROM sessions ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		var status string
		var patientID, therapistID, scoringConfigID, procKind, procMessage *string
		var sessionDate *time.Time

		if err := rows.Scan(&sess.ID, &sess.Code, &sess.ContentSHA, &status, &patientID, &therapistID, &scoringConfigID,
			&procKind, &procMessage, &sessionDate, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan recent session: %w", err)
		}

		sess.Status = models.SessionStatus(status)
		sess.PatientID = deref(patientID)
		sess.TherapistID = deref(therapistID)
		sess.ScoringConfigID = deref(scoringConfigID)
		if procKind != nil {
			sess.ProcessingErrorMessage = &models.ProcessingError{Kind: *procKind, Message: deref(procMessage)}
		}
		if sessionDate != nil {
			sess.SessionDate = *sessionDate
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate recent sessions: %w", err)
	}
	return out, nil
}

// GetChannelAnalytics loads every channel row for a session, used by
// RecalculateFromExisting to rescore without re-parsing the source file.
func (s *Store) GetChannelAnalytics(ctx context.Context, sessionID string) ([]models.ChannelAnalytics, error) {
	rows, err := s.pool.Query(ctx, `
SELECT channel_name, total_contractions, mvc_compliant_count, duration_compliant_count, good_count,
       amplitude_mean, amplitude_max, amplitude_avg,
       duration_min_ms, duration_max_ms, duration_mean_ms, duration_total_under_tension_ms,
       rms_mean, rms_std, rms_valid, mav_mean, mav_std, mav_valid,
       mpf_mean, mpf_std, mpf_valid, mdf_mean, mdf_std, mdf_valid,
       fatigue_index_mean, fatigue_index_std, fatigue_index_valid,
       signal_quality_score, mvc_value, mvc_estimation_method,
       mpf_full, mdf_full, fatigue_index_full, contractions
FROM channel_analytics WHERE session_id = $1 ORDER BY channel_name`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query channel analytics: %w", err)
	}
	defer rows.Close()

	var out []models.ChannelAnalytics
	for rows.Next() {
		var ca models.ChannelAnalytics
		var rawContractions []byte
		ca.SessionID = sessionID
		if err := rows.Scan(&ca.ChannelName, &ca.TotalContractions, &ca.MVCCompliantCount, &ca.DurationCompliantCount, &ca.GoodCount,
			&ca.Amplitude.Mean, &ca.Amplitude.Max, &ca.Amplitude.Avg,
			&ca.Duration.MinMS, &ca.Duration.MaxMS, &ca.Duration.MeanMS, &ca.Duration.TotalTimeUnderTensionMS,
			&ca.RMS.Mean, &ca.RMS.Std, &ca.RMS.Valid, &ca.MAV.Mean, &ca.MAV.Std, &ca.MAV.Valid,
			&ca.MPF.Mean, &ca.MPF.Std, &ca.MPF.Valid, &ca.MDF.Mean, &ca.MDF.Std, &ca.MDF.Valid,
			&ca.FatigueIndexFI_NSM5.Mean, &ca.FatigueIndexFI_NSM5.Std, &ca.FatigueIndexFI_NSM5.Valid,
			&ca.SignalQualityScore, &ca.MVCValue, &ca.MVCEstimationMethod,
			&ca.MPFFull, &ca.MDFFull, &ca.FatigueIndexFullFI_NSM5, &rawContractions); err != nil {
			return nil, fmt.Errorf("store: scan channel analytics: %w", err)
		}
		ca.Contractions = decodeContractions(rawContractions)
		out = append(out, ca)
	}
	return out, rows.Err()
}

// GetScoringConfiguration loads one scoring configuration snapshot by ID.
func (s *Store) GetScoringConfiguration(ctx context.Context, id string) (*models.ScoringConfiguration, error) {
	var cfg models.ScoringConfiguration
	var rpeJSON []byte
	row := s.pool.QueryRow(ctx, `
SELECT id, name, created_at, weight_compliance, weight_symmetry, weight_effort, weight_game,
       sub_weight_completion, sub_weight_intensity, sub_weight_duration, rpe_mapping, is_default
FROM scoring_configurations WHERE id = $1`, id)
	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.CreatedAt, &cfg.WeightCompliance, &cfg.WeightSymmetry,
		&cfg.WeightEffort, &cfg.WeightGame, &cfg.SubWeightCompletion, &cfg.SubWeightIntensity,
		&cfg.SubWeightDuration, &rpeJSON, &cfg.IsDefault); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: scoring configuration %s not found", id)
		}
		return nil, fmt.Errorf("store: scan scoring configuration: %w", err)
	}
	cfg.RPEMapping = decodeRPEMapping(rpeJSON)
	return &cfg, nil
}
