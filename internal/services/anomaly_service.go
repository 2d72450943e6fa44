package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/store"
	"github.com/google/uuid"
)

// metricState is everything tracked per metric key: the running baseline
// and the retained raw window used for warm-up and periodic recompute
type metricState struct {
	Baseline models.MetricBaseline
	Raw      []float64
}

// AnomalyService maintains exponentially-weighted statistical baselines per
// metric key and flags observations whose z-score and confidence both clear
// their thresholds. Observation is fire-and-forget: no error surface, no
// blocking I/O.
type AnomalyService struct {
	metrics   store.KeyedStore[*metricState]
	anomalies store.KeyedStore[*models.Anomaly]
	incidents store.KeyedStore[*models.Incident]
	alerts    AlertSink
	audit     EventLogger
	logger    *slog.Logger
}

// NewAnomalyService creates an AnomalyService
func NewAnomalyService(
	metrics store.KeyedStore[*metricState],
	anomalies store.KeyedStore[*models.Anomaly],
	incidents store.KeyedStore[*models.Incident],
	alerts AlertSink,
	audit EventLogger,
	logger *slog.Logger,
) *AnomalyService {
	return &AnomalyService{
		metrics:   metrics,
		anomalies: anomalies,
		incidents: incidents,
		alerts:    alerts,
		audit:     audit,
		logger:    logger,
	}
}

// NewMetricStateStore builds the keyed store Observe works against
func NewMetricStateStore() store.KeyedStore[*metricState] {
	return store.NewMemoryStore[*metricState]()
}

// Observe folds one metric observation into its baseline, scoring it first
// if the baseline is already established. The observation that establishes
// a baseline is never scored against it.
func (s *AnomalyService) Observe(ctx context.Context, key models.MetricKey, value float64, timestamp time.Time) {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var anomaly *models.Anomaly

	s.metrics.Update(key.String(), func(state *metricState, exists bool) (*metricState, bool) {
		if !exists {
			state = &metricState{Baseline: models.MetricBaseline{Key: key}}
		}

		state.Raw = append(state.Raw, value)
		if len(state.Raw) > models.RawObservationCap {
			state.Raw = state.Raw[len(state.Raw)-models.RawObservationCap:]
		}

		if !state.Baseline.Established() {
			// Warm-up: no scoring until enough history exists
			if len(state.Raw) >= models.BaselineMinObservations {
				stats := computeSummary(state.Raw)
				state.Baseline.Mean = stats.Mean
				state.Baseline.StdDev = stats.StdDev
				state.Baseline.Variance = stats.StdDev * stats.StdDev
				state.Baseline.Median = stats.Median
				state.Baseline.Min = stats.Min
				state.Baseline.Max = stats.Max
				state.Baseline.P95 = stats.P95
				state.Baseline.P99 = stats.P99
				state.Baseline.UpdateCount = uint(len(state.Raw))
				state.Baseline.LastUpdated = timestamp
			}
			return state, false
		}

		anomaly = s.score(&state.Baseline, value, timestamp)
		foldEWMA(&state.Baseline, value, timestamp)
		return state, false
	})

	if anomaly == nil {
		return
	}

	s.anomalies.Put(anomaly.ID.String(), anomaly)
	s.logger.Warn("anomaly detected",
		slog.String("metric_type", anomaly.MetricType),
		slog.Float64("observed", anomaly.ObservedValue),
		slog.Float64("z_score", anomaly.ZScore),
		slog.Float64("confidence", anomaly.Confidence))

	if anomaly.Confidence > models.AnomalyAlertConfidence {
		s.alerts.SendAlert(ctx, models.SeverityHigh, models.AlertTypeAnomalyDetected,
			anomaly.Description,
			map[string]any{
				"anomaly_id":  anomaly.ID.String(),
				"metric_type": anomaly.MetricType,
				"user_id":     anomaly.UserID,
				"endpoint":    anomaly.Endpoint,
				"observed":    anomaly.ObservedValue,
				"z_score":     anomaly.ZScore,
				"confidence":  anomaly.Confidence,
			})
	}
	if anomaly.Confidence > models.AnomalyIncidentConfidence {
		s.openIncident(ctx, anomaly)
	}
}

// score evaluates value against an established baseline and returns a
// materialized anomaly when both thresholds clear, or nil
func (s *AnomalyService) score(baseline *models.MetricBaseline, value float64, timestamp time.Time) *models.Anomaly {
	if baseline.StdDev == 0 {
		// Degenerate statistics: no scoring, treat as non-anomalous
		return nil
	}

	z := (value - baseline.Mean) / baseline.StdDev
	confidence := anomalyConfidence(math.Abs(z), baseline.UpdateCount)
	if confidence < models.AnomalyRecordConfidence {
		return nil
	}

	direction := "higher"
	if z < 0 {
		direction = "lower"
	}
	key := baseline.Key

	return &models.Anomaly{
		ID:            uuid.New(),
		MetricType:    key.MetricType,
		UserID:        key.UserID,
		Endpoint:      key.Endpoint,
		ObservedValue: value,
		ExpectedRange: models.ExpectedRange{
			Low:  baseline.Mean - models.ZScoreThreshold*baseline.StdDev,
			High: baseline.Mean + models.ZScoreThreshold*baseline.StdDev,
		},
		ZScore:     z,
		Confidence: confidence,
		Timestamp:  timestamp,
		Description: fmt.Sprintf("%s markedly %s than normal: observed %.2f against baseline mean %.2f (%.1f standard deviations)",
			key.MetricType, direction, value, baseline.Mean, math.Abs(z)),
	}
}

// anomalyConfidence derives a [0,0.99] confidence from the z-score
// magnitude and the amount of history behind the baseline. Confidence
// grows with |z| beyond the threshold and with update count; baselines
// with little history are discounted for unstable variance.
func anomalyConfidence(absZ float64, updates uint) float64 {
	if absZ <= models.ZScoreThreshold {
		return 0
	}

	base := 1 - math.Exp(-(absZ-models.ZScoreThreshold)/models.ZScoreThreshold)

	historyBoost := float64(updates) / 500
	if historyBoost > 0.1 {
		historyBoost = 0.1
	}

	stability := 1.0
	if updates < models.BaselineStableUpdates {
		stability = 0.9 + 0.1*float64(updates)/models.BaselineStableUpdates
	}

	confidence := (base + historyBoost) * stability
	if confidence > models.ConfidenceCap {
		confidence = models.ConfidenceCap
	}
	return confidence
}

// foldEWMA applies the exponentially-weighted incremental update. Anomalous
// values are folded at full weight, same as normal ones; the periodic full
// recompute corrects any drift this causes.
func foldEWMA(baseline *models.MetricBaseline, value float64, timestamp time.Time) {
	alpha := models.BaselineLearningRate
	baseline.Mean = (1-alpha)*baseline.Mean + alpha*value
	diff := value - baseline.Mean
	baseline.Variance = (1-alpha)*baseline.Variance + alpha*diff*diff
	baseline.StdDev = math.Sqrt(baseline.Variance)
	if value < baseline.Min {
		baseline.Min = value
	}
	if value > baseline.Max {
		baseline.Max = value
	}
	baseline.UpdateCount++
	baseline.LastUpdated = timestamp
}

func (s *AnomalyService) openIncident(ctx context.Context, anomaly *models.Anomaly) {
	incident := &models.Incident{
		ID:        uuid.New(),
		AnomalyID: anomaly.ID,
		OpenedAt:  time.Now().UTC(),
		Summary:   anomaly.Description,
	}
	s.incidents.Put(incident.ID.String(), incident)
	s.alerts.SendAlert(ctx, models.SeverityCritical, models.AlertTypeIncidentOpened,
		fmt.Sprintf("incident opened for %s anomaly (confidence %.2f)", anomaly.MetricType, anomaly.Confidence),
		map[string]any{
			"incident_id": incident.ID.String(),
			"anomaly_id":  anomaly.ID.String(),
		})
}

// RecomputeBaselines fully recomputes every baseline from its retained raw
// window, correcting drift the incremental updates accumulate. Runs on a
// coarse schedule; each key's lock is held only for its own recompute.
func (s *AnomalyService) RecomputeBaselines() int {
	recomputed := 0
	keys := make([]string, 0)
	s.metrics.Sweep(func(key string, state *metricState) bool {
		keys = append(keys, key)
		return false
	})

	for _, key := range keys {
		s.metrics.Update(key, func(state *metricState, exists bool) (*metricState, bool) {
			if !exists || len(state.Raw) < models.BaselineMinObservations {
				return state, !exists
			}
			stats := computeSummary(state.Raw)
			state.Baseline.Mean = stats.Mean
			state.Baseline.StdDev = stats.StdDev
			state.Baseline.Variance = stats.StdDev * stats.StdDev
			state.Baseline.Median = stats.Median
			state.Baseline.Min = stats.Min
			state.Baseline.Max = stats.Max
			state.Baseline.P95 = stats.P95
			state.Baseline.P99 = stats.P99
			state.Baseline.LastUpdated = time.Now()
			recomputed++
			return state, false
		})
	}
	return recomputed
}

// Baseline returns a copy of the established baseline for key, if any.
// The copy is taken under the store's key lock so readers never observe a
// half-updated fold.
func (s *AnomalyService) Baseline(key models.MetricKey) (*models.MetricBaseline, bool) {
	var baseline *models.MetricBaseline
	s.metrics.Update(key.String(), func(state *metricState, exists bool) (*metricState, bool) {
		if !exists {
			return nil, true
		}
		if state.Baseline.Established() {
			b := state.Baseline
			baseline = &b
		}
		return state, false
	})
	return baseline, baseline != nil
}

// Baselines lists all established baselines
func (s *AnomalyService) Baselines() []*models.MetricBaseline {
	out := make([]*models.MetricBaseline, 0)
	s.metrics.Sweep(func(key string, state *metricState) bool {
		if state.Baseline.Established() {
			baseline := state.Baseline
			out = append(out, &baseline)
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Anomalies lists copies of recorded anomalies, newest first. Review
// actions mutate the stored records, so listings hand out snapshots taken
// under the store's shard locks.
func (s *AnomalyService) Anomalies(includeReviewed bool) []*models.Anomaly {
	out := make([]*models.Anomaly, 0)
	s.anomalies.Sweep(func(key string, a *models.Anomaly) bool {
		if includeReviewed || (!a.Acknowledged && !a.FalsePositive) {
			out = append(out, a.Clone())
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Acknowledge marks an anomaly reviewed. Unknown IDs return false.
func (s *AnomalyService) Acknowledge(ctx context.Context, id uuid.UUID, actor string) bool {
	return s.review(ctx, id, actor, func(a *models.Anomaly) { a.Acknowledged = true }, "acknowledged")
}

// MarkFalsePositive flags an anomaly as a false positive. Unknown IDs
// return false.
func (s *AnomalyService) MarkFalsePositive(ctx context.Context, id uuid.UUID, actor string) bool {
	return s.review(ctx, id, actor, func(a *models.Anomaly) { a.FalsePositive = true }, "marked false positive")
}

func (s *AnomalyService) review(ctx context.Context, id uuid.UUID, actor string, apply func(*models.Anomaly), action string) bool {
	found := false
	s.anomalies.Update(id.String(), func(a *models.Anomaly, exists bool) (*models.Anomaly, bool) {
		if !exists {
			return nil, true
		}
		apply(a)
		found = true
		return a, false
	})
	if found {
		s.audit.LogEvent(ctx, actor,
			fmt.Sprintf("anomaly %s %s", id, action),
			map[string]any{"event_type": models.AuditEventAnomalyReview, "anomaly_id": id.String()})
	}
	return found
}
