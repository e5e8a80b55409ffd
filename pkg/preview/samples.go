package preview

import (
	"context"

	"github.com/telekom/notification-mailer/pkg/notify"
)

type sampleFunc func(ctx context.Context, c *notify.Composer) (bool, error)

var (
	sampleUser = &notify.User{
		ID:                      "5f1a0c2e",
		FullName:                "Ada Lovelace",
		EmailAddress:            "ada@example.com",
		VerifyEmailAddressToken: "verify-3b9e6f",
		PasswordResetToken:      "reset-81c4d2",
	}
	sampleSender = &notify.User{ID: "9d2e77a1", FullName: "Grace Hopper", EmailAddress: "grace@example.com"}
	sampleOrg    = &notify.Organization{ID: "org-1337", Name: "Analytical Engines", IsFreePlan: true}
	sampleProj   = &notify.Project{ID: "prj-42", Name: "Difference Engine", OrganizationID: "org-1337"}
)

var samples = map[string]sampleFunc{
	notify.TemplateEventNotice: func(ctx context.Context, c *notify.Composer) (bool, error) {
		ev := &notify.Event{
			ID:        "evt-0001",
			StackID:   "stk-0001",
			ProjectID: sampleProj.ID,
			Type:      notify.EventTypeError,
			Tags:      []string{"Critical", "billing"},
			Version:   "1.4.2",
			Date:      SampleTime,
			Error: &notify.ErrorInfo{
				Type:    "System.NullReferenceException",
				Message: "Object reference not set to an instance of an object.",
				Method:  "Billing.Invoice.Total",
			},
			Request: &notify.RequestInfo{HTTPMethod: "POST", Host: "app.example.com", Path: "/invoices"},
		}
		return c.SendEventNotice(ctx, sampleUser, sampleProj, ev, notify.EventNoticeFlags{IsNew: true, TotalOccurrences: 1})
	},
	notify.TemplateOrganizationAdded: func(ctx context.Context, c *notify.Composer) (bool, error) {
		return c.SendOrganizationAdded(ctx, sampleSender, sampleOrg, sampleUser)
	},
	notify.TemplateOrganizationInvited: func(ctx context.Context, c *notify.Composer) (bool, error) {
		invite := &notify.Invite{Token: "invite-5e0b1a", EmailAddress: "charles@example.com", DateAdded: SampleTime}
		return c.SendOrganizationInvite(ctx, sampleSender, sampleOrg, invite)
	},
	notify.TemplateOrganizationNotice: func(ctx context.Context, c *notify.Composer) (bool, error) {
		return c.SendOrganizationNotice(ctx, sampleUser, sampleOrg, false, true)
	},
	notify.TemplateOrganizationPaymentFailed: func(ctx context.Context, c *notify.Composer) (bool, error) {
		return c.SendOrganizationPaymentFailed(ctx, sampleUser, sampleOrg)
	},
	notify.TemplateProjectDailySummary: func(ctx context.Context, c *notify.Composer) (bool, error) {
		summary := &notify.DailySummary{
			StartDate:          SampleTime.AddDate(0, 0, -1),
			Count:              1280,
			Unique:             14,
			New:                3,
			Fixed:              2,
			Blocked:            7,
			HasSubmittedEvents: true,
			IsFreePlan:         true,
			MostFrequent: []notify.StackSummary{
				{ID: "stk-0001", Title: "Object reference not set to an instance of an object.", TypeName: "NullReferenceException", Path: "/invoices"},
				{ID: "stk-0002", Title: "Timeout expired", TypeName: "SqlException"},
			},
			Newest: []notify.StackSummary{
				{ID: "stk-0003", Title: "Index was outside the bounds of the array.", TypeName: "IndexOutOfRangeException"},
			},
		}
		return c.SendProjectDailySummary(ctx, sampleUser, sampleProj, summary)
	},
	notify.TemplateUserEmailVerify: func(ctx context.Context, c *notify.Composer) (bool, error) {
		return c.SendUserEmailVerify(ctx, sampleUser)
	},
	notify.TemplateUserPasswordReset: func(ctx context.Context, c *notify.Composer) (bool, error) {
		return c.SendUserPasswordReset(ctx, sampleUser)
	},
}
