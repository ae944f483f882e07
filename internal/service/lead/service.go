package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
)

var (
	// ErrAlreadySubmitted is returned when the session already captured its lead.
	ErrAlreadySubmitted = turn.ErrAlreadySubmitted
	// ErrPending is returned while another submission for the session is in flight.
	ErrPending = turn.ErrLeadPending
	// ErrSubmitFailed wraps collaborator failures. The conversation stays intact.
	ErrSubmitFailed = errors.New("lead submission failed")
	// ErrCollaboratorDisabled is returned when no contact endpoint is configured.
	ErrCollaboratorDisabled = errors.New("lead collaborator not configured")
)

const (
	DefaultConfirmation = "Bilgileriniz bize ulaştı, teşekkürler! Ekibimiz en kısa sürede sizinle iletişime geçecek."
	failureNotice       = "Bilgileriniz gönderilemedi. Lütfen biraz sonra tekrar deneyin; sohbetimiz kaldığı yerden devam ediyor."
)

// Request is the contact form payload.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Message string `json:"message"`
}

// ValidationError reports an invalid form field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Target is the conversation a lead belongs to. BeginLead claims the single
// submission; the claim ends with CompleteLead or AbortLead.
type Target interface {
	BeginLead() error
	AbortLead()
	CompleteLead(confirmation string) (chat.Message, error)
	DismissLeadForm()
	Notice(text string)
}

// Service validates lead forms and forwards them to the collaborator.
type Service struct {
	submitter    Submitter
	confirmation string
	logger       *slog.Logger
}

// NewService creates a lead service. A nil submitter disables submission.
func NewService(submitter Submitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		submitter:    submitter,
		confirmation: DefaultConfirmation,
		logger:       logger,
	}
}

// Enabled reports whether a collaborator is configured.
func (s *Service) Enabled() bool {
	return s.submitter != nil
}

// Submit validates req, forwards it and on success marks the lead captured in target.
// The collaborator is called at most once per session, never for a closed one.
// A collaborator failure is surfaced as a notice and leaves target untouched.
func (s *Service) Submit(ctx context.Context, target Target, req Request) (chat.Message, error) {
	req = normalize(req)
	if err := validate(req); err != nil {
		return chat.Message{}, err
	}
	if err := target.BeginLead(); err != nil {
		return chat.Message{}, err
	}
	if s.submitter == nil {
		target.AbortLead()
		return chat.Message{}, ErrCollaboratorDisabled
	}

	if err := s.submitter.Submit(ctx, req); err != nil {
		target.AbortLead()
		s.logger.Warn("lead submission failed", "error", err)
		target.Notice(failureNotice)
		return chat.Message{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	msg, err := target.CompleteLead(s.confirmation)
	if err != nil {
		return chat.Message{}, err
	}
	s.logger.Info("lead captured", "company", req.Company)
	return msg, nil
}

// Dismiss hides the form without submitting.
func (s *Service) Dismiss(target Target) {
	target.DismissLeadForm()
}

// FailureNotice is the text shown when the collaborator rejects a lead.
func FailureNotice() string {
	return failureNotice
}

func normalize(req Request) Request {
	return Request{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Company: strings.TrimSpace(req.Company),
		Message: strings.TrimSpace(req.Message),
	}
}

func validate(req Request) error {
	if req.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if req.Email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return &ValidationError{Field: "email", Reason: "is invalid"}
	}
	return nil
}
