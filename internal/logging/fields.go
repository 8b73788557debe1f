package logging

const (
	// FieldComponent is the structured logging key for subsystem names.
	FieldComponent = "component"
	// FieldEventType is the machine-readable event identifier.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID identifies one daemon run.
	FieldSessionID = "session_id"
	// FieldAttemptID identifies one pairing attempt.
	FieldAttemptID = "attempt_id"
	// FieldCodeKind is the classified kind of a scan.
	FieldCodeKind = "code_kind"
	// FieldState is the pairing state at the time of the event.
	FieldState = "state"
	// FieldDevice is a serial or GPIO device path.
	FieldDevice = "device"
)
