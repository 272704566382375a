package logging

// Standardized field names for structured logging.
const (
	FieldSessionID   = "session_id"
	FieldSessionKind = "session_kind"
	FieldStatus      = "status"
	FieldIndex       = "index"
	FieldTotal       = "total"
	FieldCount       = "count"
	FieldChecksum    = "checksum"
	FieldDescription = "description"
	FieldEntity      = "entity"
	FieldEntityID    = "entity_id"
	FieldMatchType   = "match_type"
	FieldRuleID      = "rule_id"
	FieldBucket      = "bucket"
	FieldFormat      = "format"
	FieldProvider    = "provider"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldInputFile   = "input_file"
)
