package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/events"
	"invoice-sync-service/internal/sender"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var ErrNoDocuments = errors.New("no invoice documents downloaded")

var polishRegions = display.Regions(language.Polish)

type InvoiceDownloader interface {
	DownloadInvoice(ctx context.Context, invoiceID int64) ([]byte, error)
}

type NotificationStore interface {
	FindCustomerByInvoiceID(ctx context.Context, invoiceID int64) (*domain.Customer, error)
	SaveEmailLog(ctx context.Context, l domain.EmailLog) error
}

type NotificationConfig struct {
	Recipient   string
	MaxAttempts int
	RetryDelay  time.Duration
	Location    *time.Location
}

// NotificationService mails the invoices of one batch, with their PDFs attached, to the back office.
type NotificationService struct {
	downloader InvoiceDownloader
	store      NotificationStore
	sender     sender.EmailSender
	cfg        NotificationConfig
}

func NewNotificationService(downloader InvoiceDownloader, store NotificationStore, emailSender sender.EmailSender, cfg NotificationConfig) *NotificationService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &NotificationService{downloader: downloader, store: store, sender: emailSender, cfg: cfg}
}

func (s *NotificationService) HandleInvoicesCreated(ctx context.Context, event events.InvoicesCreated) error {
	logCtx := log.WithFields(log.Fields{
		"run_id":      event.RunID,
		"invoice_ids": event.InvoiceIDs,
	})

	attachments := s.collectDocuments(ctx, event)
	customers := s.collectCustomers(ctx, event)

	if len(attachments) == 0 {
		logCtx.Warn("No invoices downloaded, aborting email sending")
		return ErrNoDocuments
	}

	subject := "Faktury " + event.CreatedAt.In(s.cfg.Location).Format("2006-01-02")
	body := composeBody(customers)

	initialDelay := s.cfg.RetryDelay
	var err error
retry:
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err = s.sender.SendEmail(ctx, s.cfg.Recipient, subject, body, attachments)
		if err == nil {
			if attempt > 1 {
				logCtx.WithField("attempt", attempt).Info("Email sent successfully after retry")
			}
			break
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}

		logCtx.WithError(err).WithFields(log.Fields{
			"attempt":      attempt,
			"max_attempts": s.cfg.MaxAttempts,
		}).Warn("Failed to send email, retrying...")

		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(initialDelay):
			initialDelay *= 2
		}
	}

	entry := domain.EmailLog{
		RunID:          event.RunID,
		RecipientEmail: s.cfg.Recipient,
		Subject:        subject,
		InvoiceIDs:     event.InvoiceIDs,
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to send invoices email via SMTP")
		entry.Status = domain.StatusFailed
		entry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	} else {
		logCtx.WithField("attachments", len(attachments)).Info("Invoices email sent successfully via SMTP")
		entry.Status = domain.StatusSent
	}

	// The log row is written even if the batch context is already done.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := s.store.SaveEmailLog(saveCtx, entry); saveErr != nil {
		logCtx.WithError(saveErr).Error("Failed to save email log to database")
		if err == nil {
			return saveErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to send invoices email: %w", err)
	}
	return nil
}

func (s *NotificationService) collectDocuments(ctx context.Context, event events.InvoicesCreated) []sender.Attachment {
	var attachments []sender.Attachment
	for _, id := range event.InvoiceIDs {
		pdf, err := s.downloader.DownloadInvoice(ctx, id)
		if err != nil {
			log.WithError(err).WithField("invoice_id", id).Warn("Cannot download invoice PDF")
			continue
		}
		attachments = append(attachments, sender.Attachment{
			Filename:    fmt.Sprintf("invoice_%d.pdf", id),
			ContentType: "application/pdf",
			Content:     pdf,
		})
	}
	return attachments
}

// collectCustomers returns the distinct customers of the batch in order of first appearance.
func (s *NotificationService) collectCustomers(ctx context.Context, event events.InvoicesCreated) []domain.Customer {
	seen := make(map[int64]struct{}, len(event.InvoiceIDs))
	var customers []domain.Customer
	for _, id := range event.InvoiceIDs {
		c, err := s.store.FindCustomerByInvoiceID(ctx, id)
		if err != nil {
			log.WithError(err).WithField("invoice_id", id).Warn("Could not fetch customer details for invoice")
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		customers = append(customers, *c)
	}
	return customers
}

func composeBody(customers []domain.Customer) string {
	blocks := make([]string, 0, len(customers))
	for _, c := range customers {
		lines := []string{
			c.FullName,
			c.AddressStreet.String,
			strings.TrimSpace(c.PostalCode.String + " " + c.City.String),
			countryName(c.CountryCode.String),
		}
		blocks = append(blocks, strings.TrimSpace(strings.Join(lines, "\n")))
	}
	return strings.Join(blocks, "\n\n")
}

// countryName returns the Polish name of an ISO 3166-1 alpha-2 code, or "" when unknown.
func countryName(code string) string {
	if code == "" {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return ""
	}
	return polishRegions.Name(region)
}
