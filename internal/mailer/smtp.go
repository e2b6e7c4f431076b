package mailer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds connection parameters for the SMTP provider.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string // "none", "starttls", "ssl_tls"
}

// SMTPProvider delivers email over SMTP using the go-mail library.
type SMTPProvider struct {
	config SMTPConfig
}

// NewSMTPProvider creates a new SMTPProvider with the given configuration.
func NewSMTPProvider(config SMTPConfig) *SMTPProvider {
	return &SMTPProvider{config: config}
}

// Name returns the provider identifier.
func (p *SMTPProvider) Name() string { return "smtp" }

// Send delivers msg through the configured SMTP server. The returned id is
// the generated Message-ID, since SMTP has no provider-assigned receipt.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) (string, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return "", &SendError{Provider: p.Name(), Err: err}
	}
	for _, r := range msg.To {
		if err := m.To(r); err != nil {
			return "", &SendError{Provider: p.Name(), Err: err}
		}
	}

	id := uuid.NewString()
	m.SetMessageIDWithValue(id)
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)

	c, err := mail.NewClient(p.config.Host,
		mail.WithPort(p.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(p.config.Username),
		mail.WithPassword(p.config.Password),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(p.config.Encryption)),
	)
	if err != nil {
		return "", &SendError{Provider: p.Name(), Transient: true, Err: err}
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return "", &SendError{Provider: p.Name(), Transient: smtpTransient(err), Err: err}
	}
	return id, nil
}

// smtpTransient reports whether an SMTP failure is worth retrying.
// go-mail surfaces 4xx SMTP replies as temporary; anything it cannot
// classify is assumed transient (connection-level failures mostly).
func smtpTransient(err error) bool {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		return sendErr.IsTemp()
	}
	return true
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
