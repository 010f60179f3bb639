package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Channel delivers one event to a set of admins.
type Channel interface {
	Name() string
	Send(ctx context.Context, admins []models.Admin, ev LowStockEvent) error
}

// DatabaseChannel stores one in-app notification per admin.
type DatabaseChannel struct {
	store *store.Store
}

// NewDatabaseChannel returns the in-app channel.
func NewDatabaseChannel(s *store.Store) *DatabaseChannel { return &DatabaseChannel{store: s} }

func (c *DatabaseChannel) Name() string { return "database" }

func (c *DatabaseChannel) Send(ctx context.Context, admins []models.Admin, ev LowStockEvent) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rows := make([]models.Notification, 0, len(admins))
	for _, a := range admins {
		rows = append(rows, models.Notification{
			AdminID: a.ID,
			Type:    models.NotificationTypeLowStock,
			Title:   ev.Subject(),
			Message: ev.Message(),
			Data:    datatypes.JSON(data),
			SentAt:  now,
		})
	}
	return c.store.CreateNotifications(ctx, rows)
}

// Mailer sends a plain text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailChannel sends one mail per admin.
type MailChannel struct {
	mailer Mailer
	appURL string
}

// NewMailChannel returns the mail channel. appURL is used for product links.
func NewMailChannel(m Mailer, appURL string) *MailChannel {
	return &MailChannel{mailer: m, appURL: appURL}
}

func (c *MailChannel) Name() string { return "mail" }

func (c *MailChannel) Send(ctx context.Context, admins []models.Admin, ev LowStockEvent) error {
	var errs error
	for _, a := range admins {
		name := a.Name
		if name == "" {
			name = a.Email
		}
		if err := c.mailer.Send(ctx, a.Email, ev.Subject(), ev.Body(name, c.appURL)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mail to %s: %w", a.Email, err))
		}
	}
	return errs
}

// LogMailer writes mails to the log. Used when no SMTP host is configured.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(log *zap.Logger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("mail", zap.String("to", to), zap.String("subject", subject), zap.Int("body_bytes", len(body)))
	return nil
}

// BuildChannels resolves channel names from configuration.
func BuildChannels(names []string, s *store.Store, mailer Mailer, appURL string) ([]Channel, error) {
	var out []Channel
	for _, name := range names {
		switch name {
		case "database":
			out = append(out, NewDatabaseChannel(s))
		case "mail":
			out = append(out, NewMailChannel(mailer, appURL))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}
	return out, nil
}
