package notification

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Mailer sends fully built messages; *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

func NewSMTPMailer(host string, port int, user, pass string) *gomail.Dialer {
	return gomail.NewDialer(host, port, user, pass)
}

// EmailNotifier mails the recipient at the address on their user record.
type EmailNotifier struct {
	db     *gorm.DB
	mailer Mailer
	from   string
	log    zerolog.Logger
}

func NewEmailNotifier(db *gorm.DB, mailer Mailer, from string, log zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{db: db, mailer: mailer, from: from, log: log.With().Str("component", "email").Logger()}
}

func (e *EmailNotifier) NotifyUser(ctx context.Context, userID uint, title, body string, metadata map[string]string) error {
	var user models.User
	if err := e.db.WithContext(ctx).Select("id", "email", "full_name").First(&user, userID).Error; err != nil {
		return fmt.Errorf("look up user %d: %w", userID, err)
	}
	return e.send(ctx, models.RoleUser, userID, user.Email, user.FullName, title, body, metadata)
}

func (e *EmailNotifier) NotifyConsultant(ctx context.Context, consultantID uint, title, body string, metadata map[string]string) error {
	var consultant models.Consultant
	if err := e.db.WithContext(ctx).Preload("User").First(&consultant, consultantID).Error; err != nil {
		return fmt.Errorf("look up consultant %d: %w", consultantID, err)
	}
	if consultant.User == nil {
		return fmt.Errorf("consultant %d has no user record", consultantID)
	}
	return e.send(ctx, models.RoleConsultant, consultantID, consultant.User.Email, consultant.User.FullName, title, body, metadata)
}

func (e *EmailNotifier) send(ctx context.Context, role models.Role, ownerID uint, to, name, title, body string, metadata map[string]string) error {
	if to == "" {
		return errors.New("recipient has no email address")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetAddressHeader("To", to, name)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", body)
	m.AddAlternative("text/html", fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(name), html.EscapeString(body)))

	status := StatusSent
	err := e.mailer.DialAndSend(m)
	if err != nil {
		status = StatusFailed
		err = fmt.Errorf("send email to %s %d: %w", role, ownerID, err)
	}
	recordHistory(ctx, e.db, e.log, role, ownerID, ChannelEmail, title, body, metadata, status)
	return err
}
