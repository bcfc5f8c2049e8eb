package logging

// Standardized field names for structured logging.
const (
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldConfidence    = "confidence"
	FieldThreshold     = "threshold"
	FieldAccount       = "account_id"
	FieldReason        = "reason"
	FieldOperation     = "operation"
	FieldStatus        = "status"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
	FieldCount         = "count"
	FieldArtifact      = "artifact"
	FieldDirectory     = "directory"
	FieldFingerprint   = "fingerprint"
	FieldSource        = "source"
)
