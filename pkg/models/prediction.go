package models

// MonitoringFrequency is how often a grower should re-inspect the crop.
type MonitoringFrequency string

const (
	MonitorDaily  MonitoringFrequency = "Daily"
	MonitorWeekly MonitoringFrequency = "Weekly"
)

// RiskLevel grades how damaging a condition is expected to be.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// RecommendationRecord is the care guidance attached to a disease identifier.
type RecommendationRecord struct {
	ImmediateActions    []string            `json:"immediate_actions"`
	PreventiveMeasures  []string            `json:"preventive_measures"`
	MonitoringFrequency MonitoringFrequency `json:"monitoring_frequency"`
	RiskLevel           RiskLevel           `json:"risk_level"`
}

// Clone returns a deep copy so callers cannot mutate shared catalog slices.
func (r RecommendationRecord) Clone() RecommendationRecord {
	r.ImmediateActions = append([]string(nil), r.ImmediateActions...)
	r.PreventiveMeasures = append([]string(nil), r.PreventiveMeasures...)
	return r
}

// PredictionResult is the outcome of classifying one image.
type PredictionResult struct {
	Disease         string               `json:"disease"`
	Confidence      float64              `json:"confidence"`
	Recommendations RecommendationRecord `json:"recommendations"`
	Error           string               `json:"error,omitempty"`

	// FailureKind names the error category behind a degraded result. It is
	// empty on success and never serialised.
	FailureKind string `json:"-"`
}

// Degraded reports whether the result is a fallback produced after a failure.
func (r PredictionResult) Degraded() bool {
	return r.Error != ""
}

// BatchItemResult pairs one batch input with its outcome. Exactly one of
// Result and Error is set.
type BatchItemResult struct {
	Filename string            `json:"filename"`
	Result   *PredictionResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// DiseaseListing is the catalog as exposed to clients.
type DiseaseListing struct {
	Diseases        []string                        `json:"diseases"`
	Recommendations map[string]RecommendationRecord `json:"recommendations"`
}
