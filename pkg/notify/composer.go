// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/metrics"
	"github.com/telekom/notification-mailer/pkg/utils"
)

// Template names, one per notification kind.
const (
	TemplateEventNotice               = "event-notice"
	TemplateOrganizationAdded         = "organization-added"
	TemplateOrganizationInvited       = "organization-invited"
	TemplateOrganizationNotice        = "organization-notice"
	TemplateOrganizationPaymentFailed = "organization-payment-failed"
	TemplateProjectDailySummary       = "project-daily-summary"
	TemplateUserEmailVerify           = "user-email-verify"
	TemplateUserPasswordReset         = "user-password-reset"
)

// Templates lists every template the composer renders.
var Templates = []string{
	TemplateEventNotice,
	TemplateOrganizationAdded,
	TemplateOrganizationInvited,
	TemplateOrganizationNotice,
	TemplateOrganizationPaymentFailed,
	TemplateProjectDailySummary,
	TemplateUserEmailVerify,
	TemplateUserPasswordReset,
}

// Skip reasons reported in logs and metrics.
const (
	reasonMissingInput    = "missing-input"
	reasonMissingToken    = "missing-token"
	reasonNoRecipient     = "no-recipient"
	reasonEmptyContext    = "empty-context"
	reasonNoLimitExceeded = "no-limit-exceeded"
)

const (
	maxSubjectLength      = 120
	maxSummaryTitleLength = 50
	summaryDateLayout     = "Monday, January 2, 2006"
	throttledUntilLayout  = "15:04"
	defaultProductName    = "Sentinel"
)

// Submitter hands a rendered message to delivery.
type Submitter interface {
	Submit(ctx context.Context, msg mail.Message) mail.Outcome
}

// Options configures a Composer.
type Options struct {
	// BaseURL of the web application, without trailing slash.
	BaseURL     string
	ProductName string
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
	// Formatters overrides DefaultFormatters.
	Formatters []Formatter
}

// Composer builds one message per notification kind, renders it and submits
// it for delivery. Every Send method returns false with a nil error when the
// notification was skipped.
type Composer struct {
	submitter  Submitter
	renderer   mail.Renderer
	baseURL    string
	product    string
	clock      func() time.Time
	formatters []Formatter
	log        *zap.SugaredLogger
}

func NewComposer(submitter Submitter, renderer mail.Renderer, opts Options, log *zap.SugaredLogger) *Composer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ProductName == "" {
		opts.ProductName = defaultProductName
	}
	if len(opts.Formatters) == 0 {
		opts.Formatters = DefaultFormatters()
	}
	return &Composer{
		submitter:  submitter,
		renderer:   renderer,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		product:    opts.ProductName,
		clock:      opts.Clock,
		formatters: opts.Formatters,
		log:        log.Named("composer"),
	}
}

// SendEventNotice notifies user about an occurrence of event in project.
func (c *Composer) SendEventNotice(ctx context.Context, user *User, project *Project, ev *Event, flags EventNoticeFlags) (bool, error) {
	if user == nil || project == nil || ev == nil {
		return c.skip(TemplateEventNotice, reasonMissingInput)
	}

	f := selectFormatter(c.formatters, ev)
	if f == nil {
		return c.skip(TemplateEventNotice, reasonEmptyContext, "eventId", ev.ID, "eventType", ev.Type)
	}
	formatted := f.Format(ev, flags)
	if formatted.Empty() {
		return c.skip(TemplateEventNotice, reasonEmptyContext, "eventId", ev.ID, "formatter", f.Name())
	}

	data := mail.NewData().
		Merge(formatted.Data).
		SetString("EventId", ev.ID).
		SetString("StackId", ev.StackID).
		SetString("ProjectId", project.ID).
		SetString("ProjectName", project.Name).
		SetBool("IsCritical", ev.IsCritical()).
		SetBool("IsNew", flags.IsNew).
		SetBool("IsRegression", flags.IsRegression).
		SetInt("TotalOccurrences", flags.TotalOccurrences)

	subject := fmt.Sprintf("%s: %s", project.Name, utils.Truncate(formatted.Subject, maxSubjectLength))
	return c.send(ctx, TemplateEventNotice, user.EmailAddress, subject, formatted.Subject, data)
}

// SendOrganizationAdded tells user that sender added them to org.
func (c *Composer) SendOrganizationAdded(ctx context.Context, sender *User, org *Organization, user *User) (bool, error) {
	if sender == nil || org == nil || user == nil {
		return c.skip(TemplateOrganizationAdded, reasonMissingInput)
	}
	subject := fmt.Sprintf("%s added you to the organization \"%s\" on %s", senderName(sender), org.Name, c.product)
	return c.send(ctx, TemplateOrganizationAdded, user.EmailAddress, subject, subject, organizationData(org))
}

// SendOrganizationInvite invites the address of invite to join org.
func (c *Composer) SendOrganizationInvite(ctx context.Context, sender *User, org *Organization, invite *Invite) (bool, error) {
	if sender == nil || org == nil || invite == nil {
		return c.skip(TemplateOrganizationInvited, reasonMissingInput)
	}
	if invite.Token == "" {
		return c.skip(TemplateOrganizationInvited, reasonMissingToken, "organizationId", org.ID)
	}
	subject := fmt.Sprintf("%s invited you to join the organization \"%s\" on %s", senderName(sender), org.Name, c.product)
	data := organizationData(org).SetString("InviteToken", invite.Token)
	return c.send(ctx, TemplateOrganizationInvited, invite.EmailAddress, subject, subject, data)
}

// SendOrganizationNotice warns user that org went over its monthly or hourly
// event limit. The monthly notice wins when both apply.
func (c *Composer) SendOrganizationNotice(ctx context.Context, user *User, org *Organization, overMonthly, overHourly bool) (bool, error) {
	if user == nil || org == nil {
		return c.skip(TemplateOrganizationNotice, reasonMissingInput)
	}
	if !overMonthly && !overHourly {
		return c.skip(TemplateOrganizationNotice, reasonNoLimitExceeded, "organizationId", org.ID)
	}

	subject := fmt.Sprintf("[%s] Events are currently being throttled.", org.Name)
	if overMonthly {
		subject = fmt.Sprintf("[%s] Monthly plan limit exceeded.", org.Name)
	}
	data := organizationData(org).
		SetBool("IsOverMonthlyLimit", overMonthly).
		SetBool("IsOverHourlyLimit", overHourly).
		SetString("ThrottledUntil", ThrottledUntil(c.clock()))
	return c.send(ctx, TemplateOrganizationNotice, user.EmailAddress, subject, subject, data)
}

// SendOrganizationPaymentFailed tells the billing owner that a charge failed.
func (c *Composer) SendOrganizationPaymentFailed(ctx context.Context, owner *User, org *Organization) (bool, error) {
	if owner == nil || org == nil {
		return c.skip(TemplateOrganizationPaymentFailed, reasonMissingInput)
	}
	subject := fmt.Sprintf("[%s] Payment failed! Update billing information to avoid service interruption!", org.Name)
	return c.send(ctx, TemplateOrganizationPaymentFailed, owner.EmailAddress, subject, subject, organizationData(org))
}

// SendProjectDailySummary sends the daily activity summary of project.
func (c *Composer) SendProjectDailySummary(ctx context.Context, user *User, project *Project, summary *DailySummary) (bool, error) {
	if user == nil || project == nil || summary == nil {
		return c.skip(TemplateProjectDailySummary, reasonMissingInput)
	}

	startDate := summary.StartDate.UTC().Format(summaryDateLayout)
	subject := fmt.Sprintf("[%s] Summary for %s", project.Name, startDate)
	data := mail.NewData().
		SetString("ProjectId", project.ID).
		SetString("ProjectName", project.Name).
		SetString("StartDate", startDate).
		SetInt("Count", summary.Count).
		SetInt("Unique", summary.Unique).
		SetInt("New", summary.New).
		SetInt("Fixed", summary.Fixed).
		SetInt("Blocked", summary.Blocked).
		SetInt("TooBig", summary.TooBig).
		SetBool("HasSubmittedEvents", summary.HasSubmittedEvents).
		SetBool("IsFreePlan", summary.IsFreePlan).
		SetList("MostFrequent", stackList(summary.MostFrequent)).
		SetList("Newest", stackList(summary.Newest))
	return c.send(ctx, TemplateProjectDailySummary, user.EmailAddress, subject, subject, data)
}

// SendUserEmailVerify asks user to confirm their address. Users without a
// verification token are skipped.
func (c *Composer) SendUserEmailVerify(ctx context.Context, user *User) (bool, error) {
	if user == nil {
		return c.skip(TemplateUserEmailVerify, reasonMissingInput)
	}
	if user.VerifyEmailAddressToken == "" {
		return c.skip(TemplateUserEmailVerify, reasonMissingToken, "userId", user.ID)
	}
	subject := fmt.Sprintf("%s Account Confirmation", c.product)
	data := mail.NewData().
		SetString("FullName", user.FullName).
		SetString("Token", user.VerifyEmailAddressToken)
	return c.send(ctx, TemplateUserEmailVerify, user.EmailAddress, subject, subject, data)
}

// SendUserPasswordReset sends the password reset link. Users without a reset
// token are skipped.
func (c *Composer) SendUserPasswordReset(ctx context.Context, user *User) (bool, error) {
	if user == nil {
		return c.skip(TemplateUserPasswordReset, reasonMissingInput)
	}
	if user.PasswordResetToken == "" {
		return c.skip(TemplateUserPasswordReset, reasonMissingToken, "userId", user.ID)
	}
	subject := fmt.Sprintf("%s Password Reset", c.product)
	data := mail.NewData().
		SetString("FullName", user.FullName).
		SetString("Token", user.PasswordResetToken)
	return c.send(ctx, TemplateUserPasswordReset, user.EmailAddress, subject, subject, data)
}

// send merges the base fields, renders template and submits the message.
// bodySubject is the headline shown inside the mail body.
func (c *Composer) send(ctx context.Context, template, to, subject, bodySubject string, data mail.Data) (bool, error) {
	if strings.TrimSpace(to) == "" {
		return c.skip(template, reasonNoRecipient)
	}

	data.SetString("BaseUrl", c.baseURL).
		SetString("ProductName", c.product).
		SetString("Subject", bodySubject)

	body, err := c.renderer.Render(template, data)
	if err != nil {
		c.log.Errorw("Failed to render notification", "template", template, "error", err)
		return false, fmt.Errorf("render %s: %w", template, err)
	}

	out := c.submitter.Submit(ctx, mail.Message{
		To:       to,
		Subject:  subject,
		Body:     body,
		Template: template,
	})
	if err := out.Err(); err != nil {
		return false, fmt.Errorf("submit %s: %w", template, err)
	}

	c.log.Infow("Notification queued", "template", template, "subject", out.Message.Subject)
	return true, nil
}

func (c *Composer) skip(template, reason string, keysAndValues ...any) (bool, error) {
	metrics.NotificationsSkipped.WithLabelValues(template, reason).Inc()
	c.log.Warnw("Skipping notification", append([]any{"template", template, "reason", reason}, keysAndValues...)...)
	return false, nil
}

// ThrottledUntil returns the start of the hour after now, as "15:04" UTC.
func ThrottledUntil(now time.Time) string {
	return now.UTC().Truncate(time.Hour).Add(time.Hour).Format(throttledUntilLayout)
}

func organizationData(org *Organization) mail.Data {
	return mail.NewData().
		SetString("OrganizationId", org.ID).
		SetString("OrganizationName", org.Name)
}

func senderName(u *User) string {
	return firstNonEmpty(u.FullName, u.EmailAddress)
}

func stackList(stacks []StackSummary) []mail.Data {
	out := make([]mail.Data, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, mail.NewData().
			SetString("StackId", s.ID).
			SetString("Title", utils.Truncate(s.Title, maxSummaryTitleLength)).
			SetString("TypeName", utils.Truncate(s.TypeName, maxSummaryTitleLength)).
			SetIfNotEmpty("Path", s.Path))
	}
	return out
}
