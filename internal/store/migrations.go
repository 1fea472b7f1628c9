package store

import "context"

// Schema is the DDL applied by Migrate. It is deliberately one flat script
// rather than a versioned migration chain: this module has a single schema
// revision (see DESIGN.md for the rationale).
const Schema = `
CREATE TABLE IF NOT EXISTS patient_ordinals (
  patient_id TEXT PRIMARY KEY,
  ordinal    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS patient_session_sequences (
  patient_id TEXT PRIMARY KEY,
  next_seq   INTEGER NOT NULL DEFAULT 2
);

CREATE TABLE IF NOT EXISTS scoring_configurations (
  id                    TEXT PRIMARY KEY,
  name                  TEXT NOT NULL,
  created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
  weight_compliance     DOUBLE PRECISION NOT NULL,
  weight_symmetry       DOUBLE PRECISION NOT NULL,
  weight_effort         DOUBLE PRECISION NOT NULL,
  weight_game           DOUBLE PRECISION NOT NULL,
  sub_weight_completion DOUBLE PRECISION NOT NULL,
  sub_weight_intensity  DOUBLE PRECISION NOT NULL,
  sub_weight_duration   DOUBLE PRECISION NOT NULL,
  rpe_mapping           JSONB NOT NULL,
  is_default            BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS sessions (
  id                       UUID PRIMARY KEY,
  code                     TEXT NOT NULL,
  content_sha256           TEXT NOT NULL,
  status                   TEXT NOT NULL CHECK (status IN ('pending','processing','completed','failed')),
  patient_id               TEXT,
  therapist_id             TEXT,
  scoring_config_id        TEXT REFERENCES scoring_configurations(id),
  processing_error_kind    TEXT,
  processing_error_message TEXT,
  game_metadata            JSONB,
  session_date             TIMESTAMPTZ,
  created_at               TIMESTAMPTZ NOT NULL,
  updated_at               TIMESTAMPTZ NOT NULL
);

-- §4.8: "A session-by-hash lookup must be O(log n) or better", and the
-- same column doubles as the idempotency key for dedup-by-hash.
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_content_sha256 ON sessions (content_sha256);

CREATE TABLE IF NOT EXISTS processing_parameters (
  session_id            UUID PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
  sampling_rate_hz       DOUBLE PRECISION NOT NULL,
  filter_low_cutoff_hz   DOUBLE PRECISION NOT NULL,
  filter_high_cutoff_hz  DOUBLE PRECISION NOT NULL,
  filter_order           INTEGER NOT NULL,
  rms_window_samples     INTEGER NOT NULL DEFAULT 0,
  rms_overlap_pct        DOUBLE PRECISION NOT NULL DEFAULT 0,
  mvc_window_samples     INTEGER NOT NULL DEFAULT 0,
  mvc_threshold_pct      DOUBLE PRECISION NOT NULL,
  pipeline_version       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS channel_analytics (
  session_id                      UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  channel_name                    TEXT NOT NULL,
  total_contractions              INTEGER NOT NULL CHECK (total_contractions >= 0),
  mvc_compliant_count             INTEGER NOT NULL CHECK (mvc_compliant_count >= 0),
  duration_compliant_count        INTEGER NOT NULL CHECK (duration_compliant_count >= 0),
  good_count                      INTEGER NOT NULL CHECK (good_count >= 0),
  amplitude_mean                  DOUBLE PRECISION NOT NULL DEFAULT 0,
  amplitude_max                   DOUBLE PRECISION NOT NULL DEFAULT 0,
  amplitude_avg                   DOUBLE PRECISION NOT NULL DEFAULT 0,
  duration_min_ms                 DOUBLE PRECISION NOT NULL DEFAULT 0,
  duration_max_ms                 DOUBLE PRECISION NOT NULL DEFAULT 0,
  duration_mean_ms                DOUBLE PRECISION NOT NULL DEFAULT 0,
  duration_total_under_tension_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
  rms_mean                        DOUBLE PRECISION NOT NULL DEFAULT 0,
  rms_std                         DOUBLE PRECISION NOT NULL DEFAULT 0,
  rms_valid                       BOOLEAN NOT NULL DEFAULT false,
  mav_mean                        DOUBLE PRECISION NOT NULL DEFAULT 0,
  mav_std                         DOUBLE PRECISION NOT NULL DEFAULT 0,
  mav_valid                       BOOLEAN NOT NULL DEFAULT false,
  mpf_mean                        DOUBLE PRECISION NOT NULL DEFAULT 0,
  mpf_std                         DOUBLE PRECISION NOT NULL DEFAULT 0,
  mpf_valid                       BOOLEAN NOT NULL DEFAULT false,
  mdf_mean                        DOUBLE PRECISION NOT NULL DEFAULT 0,
  mdf_std                         DOUBLE PRECISION NOT NULL DEFAULT 0,
  mdf_valid                       BOOLEAN NOT NULL DEFAULT false,
  fatigue_index_mean              DOUBLE PRECISION NOT NULL DEFAULT 0,
  fatigue_index_std               DOUBLE PRECISION NOT NULL DEFAULT 0,
  fatigue_index_valid             BOOLEAN NOT NULL DEFAULT false,
  signal_quality_score            DOUBLE PRECISION NOT NULL DEFAULT 0,
  mvc_value                       DOUBLE PRECISION NOT NULL DEFAULT 0,
  mvc_estimation_method           TEXT,
  mpf_full                        DOUBLE PRECISION NOT NULL DEFAULT 0,
  mdf_full                        DOUBLE PRECISION NOT NULL DEFAULT 0,
  fatigue_index_full              DOUBLE PRECISION NOT NULL DEFAULT 0,
  -- Per-contraction measurements (§4.3), kept so RecalculateFromExisting
  -- (§4.7) can re-run Contraction.Classify under new thresholds without
  -- re-parsing the source file.
  contractions                    JSONB NOT NULL DEFAULT '[]',
  PRIMARY KEY (session_id, channel_name)
);

CREATE TABLE IF NOT EXISTS session_settings (
  session_id                       UUID PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
  mvc_threshold_pct                DOUBLE PRECISION NOT NULL CHECK (mvc_threshold_pct >= 0 AND mvc_threshold_pct <= 1),
  duration_threshold_ms            INTEGER NOT NULL DEFAULT 0,
  expected_contractions_per_muscle INTEGER NOT NULL DEFAULT 0,
  bfr_enabled                      BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS bfr_monitoring (
  session_id           UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  channel              TEXT NOT NULL CHECK (channel IN ('CH1','CH2')),
  target_pressure_aop  DOUBLE PRECISION NOT NULL,
  actual_pressure_aop  DOUBLE PRECISION NOT NULL,
  cuff_pressure_mmhg   DOUBLE PRECISION NOT NULL,
  systolic_bp          DOUBLE PRECISION,
  diastolic_bp         DOUBLE PRECISION,
  manual_compliance    BOOLEAN NOT NULL DEFAULT false,
  safety_compliant     BOOLEAN NOT NULL,
  measurement_method   TEXT NOT NULL CHECK (measurement_method IN ('sensor','manual')),
  measured_at          TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (session_id, channel)
);

CREATE TABLE IF NOT EXISTS performance_scores (
  session_id             UUID PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
  overall                DOUBLE PRECISION NOT NULL CHECK (overall BETWEEN 0 AND 100),
  compliance             DOUBLE PRECISION NOT NULL CHECK (compliance BETWEEN 0 AND 100),
  symmetry               DOUBLE PRECISION NOT NULL CHECK (symmetry BETWEEN 0 AND 100),
  effort                 DOUBLE PRECISION CHECK (effort IS NULL OR effort BETWEEN 0 AND 100),
  game                   DOUBLE PRECISION CHECK (game IS NULL OR game BETWEEN 0 AND 100),
  left_muscle_compliance  DOUBLE PRECISION NOT NULL CHECK (left_muscle_compliance BETWEEN 0 AND 100),
  right_muscle_compliance DOUBLE PRECISION NOT NULL CHECK (right_muscle_compliance BETWEEN 0 AND 100),
  completion_rate_left    DOUBLE PRECISION NOT NULL CHECK (completion_rate_left BETWEEN 0 AND 1),
  intensity_rate_left     DOUBLE PRECISION NOT NULL CHECK (intensity_rate_left BETWEEN 0 AND 1),
  duration_rate_left      DOUBLE PRECISION NOT NULL CHECK (duration_rate_left BETWEEN 0 AND 1),
  completion_rate_right   DOUBLE PRECISION NOT NULL CHECK (completion_rate_right BETWEEN 0 AND 1),
  intensity_rate_right    DOUBLE PRECISION NOT NULL CHECK (intensity_rate_right BETWEEN 0 AND 1),
  duration_rate_right     DOUBLE PRECISION NOT NULL CHECK (duration_rate_right BETWEEN 0 AND 1),
  bfr_compliant          BOOLEAN NOT NULL DEFAULT false,
  rpe_post_session       INTEGER,
  scoring_config_id      TEXT NOT NULL REFERENCES scoring_configurations(id),
  fallback_mode          BOOLEAN NOT NULL DEFAULT false,
  scoring_error          TEXT
);

-- §4.8: "scoring_config_id on a completed session is immutable".
-- WriteResults' Go-side COALESCE already never overwrites a set value; this
-- trigger is the authoritative backstop against any other writer.
CREATE OR REPLACE FUNCTION forbid_scoring_config_change() RETURNS trigger AS $$
BEGIN
  IF OLD.scoring_config_id IS NOT NULL
     AND NEW.scoring_config_id IS DISTINCT FROM OLD.scoring_config_id THEN
    RAISE EXCEPTION 'scoring_config_id is immutable once set (session %)', OLD.id;
  END IF;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS sessions_scoring_config_immutable ON sessions;
CREATE TRIGGER sessions_scoring_config_immutable
  BEFORE UPDATE ON sessions
  FOR EACH ROW EXECUTE FUNCTION forbid_scoring_config_change();
`

// Migrate applies the schema. It is idempotent (CREATE ... IF NOT EXISTS /
// CREATE OR REPLACE throughout) so it is safe to run on every process start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}
