package models

import (
	"time"

	"github.com/google/uuid"
)

// Baseline and scoring thresholds
const (
	// Raw observations retained per metric key during warm-up and for the
	// periodic full recompute; oldest evicted first
	RawObservationCap = 1000

	// Observations required before a baseline is considered established
	BaselineMinObservations = 10

	// Updates after which the variance-stability discount fully ramps off
	BaselineStableUpdates = 50

	// Z-score magnitude beyond which an observation is a candidate anomaly
	ZScoreThreshold = 3.0

	// Learning rate for the exponentially-weighted baseline update
	BaselineLearningRate = 0.05

	// Confidence gates
	AnomalyRecordConfidence   = 0.8
	AnomalyAlertConfidence    = 0.9
	AnomalyIncidentConfidence = 0.95
	ConfidenceCap             = 0.99
)

// Metric types observed by the transport layer
const (
	MetricResponseTime = "response_time_ms"
	MetricPayloadSize  = "payload_bytes"
)

// MetricKey identifies one statistical baseline: a metric type, optionally
// scoped to a user and/or endpoint
type MetricKey struct {
	MetricType string `json:"metric_type"`
	UserID     string `json:"user_id,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// String returns the storage key for this metric
func (k MetricKey) String() string {
	return k.MetricType + "|" + k.UserID + "|" + k.Endpoint
}

// MetricBaseline holds the running statistical profile for one metric key
type MetricBaseline struct {
	Key         MetricKey `json:"key"`
	Mean        float64   `json:"mean"`
	Median      float64   `json:"median"`
	StdDev      float64   `json:"std_dev"`
	Variance    float64   `json:"variance"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	P95         float64   `json:"p95"`
	P99         float64   `json:"p99"`
	UpdateCount uint      `json:"update_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Established reports whether the baseline has folded in enough
// observations to be usable for anomaly scoring
func (b *MetricBaseline) Established() bool {
	return b != nil && b.UpdateCount >= BaselineMinObservations
}

// ExpectedRange is the [low, high] band a non-anomalous observation is
// expected to fall in
type ExpectedRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Anomaly is a materialized statistical deviation. Records are only created
// when both the z-score and confidence thresholds are exceeded, and are
// mutated afterwards only by explicit acknowledge / false-positive actions.
type Anomaly struct {
	ID            uuid.UUID     `json:"id"`
	MetricType    string        `json:"metric_type"`
	UserID        string        `json:"user_id,omitempty"`
	Endpoint      string        `json:"endpoint,omitempty"`
	ObservedValue float64       `json:"observed_value"`
	ExpectedRange ExpectedRange `json:"expected_range"`
	ZScore        float64       `json:"z_score"`
	Confidence    float64       `json:"confidence"`
	Timestamp     time.Time     `json:"timestamp"`
	Description   string        `json:"description"`
	Acknowledged  bool          `json:"acknowledged"`
	FalsePositive bool          `json:"false_positive"`
}

// Clone returns a copy safe to read outside the store's key lock
func (a *Anomaly) Clone() *Anomaly {
	out := *a
	return &out
}

// Incident correlates a very-high-confidence anomaly for follow-up
type Incident struct {
	ID        uuid.UUID `json:"id"`
	AnomalyID uuid.UUID `json:"anomaly_id"`
	OpenedAt  time.Time `json:"opened_at"`
	Summary   string    `json:"summary"`
}
