// Package contact stores contact-form submissions and relays them by mail.
package contact

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/mailer"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Request is an inbound contact-form submission.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Sender delivers a notification mail.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, msg mailer.Message) error
}

// Service handles contact submissions.
type Service struct {
	store  callify.ContactStore
	sender Sender
	logger *zap.Logger
}

// NewService builds a Service.
func NewService(store callify.ContactStore, sender Sender, logger *zap.Logger) *Service {
	return &Service{store: store, sender: sender, logger: logging.OrNop(logger)}
}

// Submit validates req, records it as pending and mails it. The stored status
// ends as sent or failed.
func (s *Service) Submit(ctx context.Context, req Request, clientAddr string) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)

	if req.Name == "" || req.Email == "" || req.Message == "" {
		return "", &callify.ValidationError{Title: "Missing required parameters", Message: "Name, email, and message are required"}
	}
	if !emailPattern.MatchString(req.Email) {
		return "", &callify.ValidationError{Title: "Invalid email", Message: "Please provide a valid email address"}
	}
	if !s.sender.Configured() {
		s.logger.Error("contact mail transport is not configured")
		return "", &callify.ConfigurationError{Setting: "smtp"}
	}
	if clientAddr == "" {
		clientAddr = "unknown"
	}

	id, err := s.store.SaveContact(ctx, callify.ContactSubmission{
		Name:          req.Name,
		Email:         req.Email,
		Message:       req.Message,
		ClientAddress: clientAddr,
		Status:        callify.ContactPending,
	})
	if err != nil {
		return "", &callify.StorageError{Op: "save contact", Err: err}
	}
	logger := s.logger.With(zap.String("submission_id", id))

	sendErr := s.sender.Send(ctx, mailer.Message{
		ReplyTo: req.Email,
		Subject: fmt.Sprintf("New contact message from %s", req.Name),
		Body:    fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s", req.Name, req.Email, req.Message),
	})

	status := callify.ContactSent
	if sendErr != nil {
		status = callify.ContactFailed
	}
	if err := s.store.UpdateContactStatus(ctx, id, status); err != nil {
		logger.Warn("contact status update failed", zap.String("status", string(status)), zap.Error(err))
	}
	if sendErr != nil {
		logger.Error("contact mail failed", zap.Error(sendErr))
		return "", sendErr
	}
	logger.Info("contact mail sent")
	return id, nil
}
