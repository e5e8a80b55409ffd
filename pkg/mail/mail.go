package mail

import (
	"crypto/tls"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/notification-mailer/pkg/config"
	"github.com/telekom/notification-mailer/pkg/version"
)

// Sender delivers a single message over SMTP.
type Sender interface {
	Send(msg Message) error
	GetHost() string
	GetPort() int
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type sender struct {
	dialer         dialer
	host           string
	port           int
	senderAddress  string
	senderName     string
	retryCount     int
	retryBackoffMs int
	log            *zap.SugaredLogger
}

// NewSender creates an SMTP sender from the smtp config section.
func NewSender(cfg config.SMTP, productName string, log *zap.SugaredLogger) Sender {
	log = log.Named("smtp")
	log.Infow("Initializing mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicitly configured
	}
	// Determine sender address and name, use sensible defaults when missing
	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = "noreply@localhost"
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = productName
	}

	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retryBackoffMs := cfg.RetryBackoffMs
	if retryBackoffMs <= 0 {
		retryBackoffMs = 100
	}

	return &sender{
		dialer:         d,
		host:           cfg.Host,
		port:           cfg.Port,
		senderAddress:  senderAddr,
		senderName:     senderName,
		retryCount:     retryCount,
		retryBackoffMs: retryBackoffMs,
		log:            log,
	}
}

func (s *sender) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderAddress, s.senderName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("X-Mailer", version.UserAgent())
	if msg.Template != "" {
		m.SetHeader("X-Mail-Template", msg.Template)
	}
	m.SetBody("text/html", msg.Body)

	var lastErr error
	backoffMs := s.retryBackoffMs

	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(m)
		if err == nil {
			s.log.Debugw("Mail sent", "template", msg.Template, "attempt", attempt+1)
			return nil
		}

		lastErr = err
		if attempt < s.retryCount {
			s.log.Warnw("Send attempt failed, retrying",
				"attempt", attempt+1,
				"retryInMs", backoffMs,
				"error", err)
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}

	s.log.Errorw("Failed to send mail", "attempts", s.retryCount+1, "error", lastErr)
	return lastErr
}

func (s *sender) GetHost() string {
	return s.host
}

func (s *sender) GetPort() int {
	return s.port
}
