// Package notify composes the outbound notifications: one Send method per
// notification kind builds the template data, derives the subject, renders the
// template and submits the message for delivery. Notifications missing a
// required token or with nothing to report are skipped with a warning.
package notify
