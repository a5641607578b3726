package audit

import "time"

// Action describes what was done.
type Action string

const (
	ActionLogin            Action = "login"
	ActionRegister         Action = "register"
	ActionChat             Action = "chat"
	ActionDocumentUpload   Action = "document_upload"
	ActionDocumentDelete   Action = "document_delete"
	ActionUserCreate       Action = "user_create"
	ActionUserDelete       Action = "user_delete"
	ActionNamespaceCreate  Action = "namespace_create"
	ActionNamespaceReindex Action = "namespace_reindex"
	ActionNamespaceDelete  Action = "namespace_delete"
	ActionDiagnosticsRun   Action = "diagnostics_run"
	ActionAuditPrune       Action = "audit_prune"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Username  string    `json:"username"`
	UserID    string    `json:"user_id,omitempty"`
	Success   bool      `json:"success"`
	IP        string    `json:"ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
