package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldCollection  = "collection"
	FieldBudgetID    = "budget_id"
	FieldGroupID     = "group_id"
	FieldLoanID      = "loan_id"
	FieldCounterpart = "counterpart"
	FieldAmountCents = "amount_cents"
	FieldPeriod      = "period"
	FieldMutationID  = "mutation_id"
	FieldPending     = "pending"
	FieldDuration    = "duration_ms"
	FieldStatusCode  = "status_code"
	FieldMethod      = "method"
	FieldPath        = "path"
)

// Components defines standard component names.
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStorage      = "storage"
	ComponentRecurrence   = "recurrence"
	ComponentLedger       = "ledger"
	ComponentSync         = "sync"
	ComponentOutbox       = "outbox"
	ComponentRemote       = "remote"
	ComponentConnectivity = "connectivity"
	ComponentAMQP         = "amqp"
	ComponentInvoice      = "invoice"
	ComponentBlob         = "blob"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpPush     = "push"
	OpPull     = "pull"
	OpSync     = "sync"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
