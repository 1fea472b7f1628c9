// Package models defines the shared domain types persisted and exchanged by
// the EMG analysis core: sessions, per-channel analytics, scoring results,
// and the configuration snapshots that make scores reproducible.
package models

import "time"

// SessionStatus is the session lifecycle state. Transitions are monotonic:
// pending -> processing -> (completed | failed). completed and failed are
// terminal.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// Session is the root entity for one uploaded C3D file.
type Session struct {
	ID         string        `json:"id"`
	Code       string        `json:"code"` // P###S### human-readable code
	ContentSHA string        `json:"content_sha256"`
	Status     SessionStatus `json:"status"`
	PatientID  string        `json:"patient_id,omitempty"`
	TherapistID string       `json:"therapist_id,omitempty"`

	// ScoringConfigID is immutable once first assigned (§3 invariant 4).
	ScoringConfigID string `json:"scoring_config_id,omitempty"`

	Technical *TechnicalData `json:"technical_data,omitempty"`

	GameMetadata map[string]string `json:"game_metadata,omitempty"`
	SessionDate  time.Time         `json:"session_date,omitempty"`

	ProcessingErrorMessage *ProcessingError `json:"processing_error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TechnicalData is the zero-or-one blob set on first successful parse.
type TechnicalData struct {
	SamplingRateHz float64  `json:"sampling_rate_hz"`
	DurationS      float64  `json:"duration_seconds"`
	FrameCount     int      `json:"frame_count"`
	ChannelNames   []string `json:"channel_names"`
}

// ProcessingError carries the structured error recorded on a failed session
// (§7). At most one of Corruption / InsufficientEMG is set; a generic
// processing failure sets neither.
type ProcessingError struct {
	Kind              string             `json:"kind"` // file_corruption | emg_validation_failure | processing_failure
	Message           string             `json:"message"`
	Corruption        *CorruptionDetail  `json:"corruption,omitempty"`
	InsufficientEMG   *EMGValidationFail `json:"emg_validation_failure,omitempty"`
}

type CorruptionDetail struct {
	Filename        string   `json:"filename"`
	TechnicalNote   string   `json:"technical_note"`
	UserGuidance    []string `json:"user_guidance"`
}

type EMGValidationFail struct {
	C3DMetadata           map[string]any `json:"c3d_metadata,omitempty"`
	MinSamplesRequired    int            `json:"min_samples_required"`
	ActualSamples         int            `json:"actual_samples"`
	Reason                string         `json:"reason"`
	FileInfo              map[string]any `json:"file_info,omitempty"`
	UserGuidancePrimary   string         `json:"user_guidance_primary_recommendation"`
}

// ProcessingParameters snapshots the conditioning configuration actually
// used for one session (1 per session).
type ProcessingParameters struct {
	SessionID            string  `json:"session_id"`
	SamplingRateHz       float64 `json:"sampling_rate_hz"`
	FilterLowCutoffHz    float64 `json:"filter_low_cutoff_hz"`
	FilterHighCutoffHz   float64 `json:"filter_high_cutoff_hz"`
	FilterOrder          int     `json:"filter_order"`
	RMSWindowSamples     int     `json:"rms_window_samples"`
	RMSOverlapPct        float64 `json:"rms_overlap_pct"`
	MVCWindowSamples     int     `json:"mvc_window_samples"`
	MVCThresholdPct      float64 `json:"mvc_threshold_pct"`
	PipelineVersion      string  `json:"pipeline_version"`
}

// SessionSettings captures clinical intent (1 per session).
type SessionSettings struct {
	SessionID           string  `json:"session_id"`
	MVCThresholdPct     float64 `json:"mvc_threshold_pct"` // global threshold %, §4.4 resolution steps 2-3

	// MuscleMVCValues and MuscleThresholdPercentages are optional per-muscle
	// overrides (keyed by the muscle's base channel name) feeding §4.4's
	// four-step MVC resolution order ahead of GlobalMVCValue and, ultimately,
	// backend estimation.
	MuscleMVCValues            map[string]float64 `json:"muscle_mvc_values,omitempty"`
	MuscleThresholdPercentages map[string]float64 `json:"muscle_threshold_percentages,omitempty"`
	GlobalMVCValue             *float64           `json:"global_mvc_value,omitempty"`

	DurationThresholdMS         int     `json:"duration_threshold_ms"`
	ExpectedContractionsPerMuscle int   `json:"expected_contractions_per_muscle"`
	BFREnabled                  bool    `json:"bfr_enabled"`
}

// BFRChannel identifies one of the two monitored channels.
type BFRChannel string

const (
	BFRChannel1 BFRChannel = "CH1"
	BFRChannel2 BFRChannel = "CH2"
)

// BFRMeasurementMethod distinguishes a sensor-derived reading from a
// manually-entered one; §9 open question: never substitute a default where
// the caller should see "no data".
type BFRMeasurementMethod string

const (
	BFRMeasurementSensor BFRMeasurementMethod = "sensor"
	BFRMeasurementManual BFRMeasurementMethod = "manual"
)

// BFRMonitoring is one row per session per channel.
type BFRMonitoring struct {
	SessionID            string               `json:"session_id"`
	Channel              BFRChannel           `json:"channel"`
	TargetPressureAOP    float64              `json:"target_pressure_aop"`
	ActualPressureAOP    float64              `json:"actual_pressure_aop"`
	CuffPressureMMHG     float64              `json:"cuff_pressure_mmhg"`
	SystolicBP           float64              `json:"systolic_bp,omitempty"`
	DiastolicBP          float64              `json:"diastolic_bp,omitempty"`
	ManualCompliance     bool                 `json:"manual_compliance"`
	SafetyCompliant      bool                 `json:"safety_compliant"`
	MeasurementMethod    BFRMeasurementMethod `json:"measurement_method"`
	MeasuredAt           time.Time            `json:"measured_at"`
}

// EvaluateSafety sets SafetyCompliant per §3 invariant (sensor mode):
// 40 <= actual_pressure_aop <= 60.
func (b *BFRMonitoring) EvaluateSafety() {
	if b.MeasurementMethod != BFRMeasurementSensor {
		b.SafetyCompliant = b.ManualCompliance
		return
	}
	b.SafetyCompliant = b.ActualPressureAOP >= 40 && b.ActualPressureAOP <= 60
}
