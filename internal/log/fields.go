package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldGoal          = "goal"
	FieldAmount        = "amount"
	FieldCategory      = "category"
	FieldDate          = "date"
	FieldCount         = "count"
	FieldPath          = "path"
	FieldBackend       = "backend"
	FieldRecurringID   = "recurring_id"
	FieldEvent         = "event"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentGoals     = "goals"
	ComponentStorage   = "storage"
	ComponentRecurring = "recurring"
	ComponentTransfer  = "transfer"
	ComponentAMQP      = "amqp"
	ComponentBackend   = "backend"
	ComponentSync      = "sync"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpLoad       = "load"
	OpSave       = "save"
	OpBackup     = "backup"
	OpCleanup    = "cleanup"
	OpImport     = "import"
	OpExport     = "export"
	OpContribute = "contribute"
	OpGenerate   = "generate"
	OpPublish    = "publish"
)
