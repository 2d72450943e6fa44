package models

// AlertSeverity classifies how urgently an alert should be handled
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert types emitted by the admission core
const (
	AlertTypeRateLimitExceeded = "rate_limit_exceeded"
	AlertTypeLowReputation     = "low_reputation"
	AlertTypeIPBlocked         = "ip_blocked"
	AlertTypeAnomalyDetected   = "anomaly_detected"
	AlertTypeIncidentOpened    = "incident_opened"
	AlertTypeAdmissionFault    = "admission_fault"
	AlertTypeCredentialExpiry  = "credential_expiring"
)

// Audit event types
const (
	AuditEventReputationChange = "reputation_change"
	AuditEventUnblock          = "manual_unblock"
	AuditEventAnomalyReview    = "anomaly_review"
	AuditEventAPIKeyOp         = "api_key_operation"
)
