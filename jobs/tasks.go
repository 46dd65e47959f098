package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeInvitationReap is the task type for purging expired staff
	// invitations.
	TaskTypeInvitationReap = "staff:invitation_reap"
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

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit in phase 2.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// InvitationReaper deletes staff invitations whose expiry has passed.
type InvitationReaper interface {
	ReapExpiredInvitations(ctx context.Context) (int64, error)
}

// NewInvitationReapTask constructs the nightly reap task.
func NewInvitationReapTask() *asynq.Task {
	return asynq.NewTask(TaskTypeInvitationReap, nil)
}

// NewInvitationReapHandler builds the handler for TaskTypeInvitationReap.
func NewInvitationReapHandler(reaper InvitationReaper) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := reaper.ReapExpiredInvitations(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Printf("[jobs] reaped %d expired invitations\n", n)
		}
		return nil
	}
}
