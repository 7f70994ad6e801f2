package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending notification emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeScopeNameRefresh re-resolves cached resource-scope names.
	TaskTypeScopeNameRefresh = "scopes:refresh-names"
	// TaskTypeAuditPrune removes audit records past the retention window.
	TaskTypeAuditPrune = "audit:prune"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewScopeNameRefreshTask constructs the nightly scope-name refresh task.
func NewScopeNameRefreshTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeScopeNameRefresh, nil), nil
}

// AuditPrunePayload carries the retention window in days.
type AuditPrunePayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuditPruneTask constructs the audit retention task.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPrune, data), nil
}
