// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/telekom/notification-mailer/pkg/mail"
)

// Formatted is the output of a Formatter. An empty Data means the event
// cannot be described and no notice is sent.
type Formatted struct {
	Subject string
	Data    mail.Data
}

// Empty reports whether there is nothing to send.
func (f Formatted) Empty() bool {
	return f.Data.Len() == 0
}

// Formatter turns an event into a subject line and template fields.
type Formatter interface {
	Name() string
	Supports(ev *Event) bool
	Format(ev *Event, flags EventNoticeFlags) Formatted
}

// DefaultFormatters returns the formatter chain in priority order. The last
// entry accepts every event.
func DefaultFormatters() []Formatter {
	return []Formatter{
		ErrorFormatter{},
		NotFoundFormatter{},
		LogFormatter{},
		DefaultFormatter{},
	}
}

func selectFormatter(chain []Formatter, ev *Event) Formatter {
	for _, f := range chain {
		if f.Supports(ev) {
			return f
		}
	}
	return nil
}

// NotificationType is "New", "Regression" or "Occurrence", prefixed with
// "Critical " for critical events.
func NotificationType(ev *Event, flags EventNoticeFlags) string {
	kind := "Occurrence"
	switch {
	case flags.IsNew:
		kind = "New"
	case flags.IsRegression:
		kind = "Regression"
	}
	if ev.IsCritical() {
		return "Critical " + kind
	}
	return kind
}

type ErrorFormatter struct{}

func (ErrorFormatter) Name() string { return "error" }

func (ErrorFormatter) Supports(ev *Event) bool {
	return ev.Type == EventTypeError && ev.Error != nil
}

func (ErrorFormatter) Format(ev *Event, flags EventNoticeFlags) Formatted {
	e := ev.Error
	if e.Type == "" && e.Message == "" {
		return Formatted{}
	}

	title := firstNonEmpty(e.Message, e.Type)
	subject := fmt.Sprintf("%s Error: %s", NotificationType(ev, flags), title)

	fields := mail.NewData().
		SetIfNotEmpty("Message", e.Message).
		SetIfNotEmpty("Type", shortTypeName(e.Type)).
		SetIfNotEmpty("Method", e.Method).
		SetIfNotEmpty("Url", ev.Request.URL())
	addDefaultFields(ev, fields)

	data := mail.NewData().SetMap("Fields", fields)
	addUserInfo(ev, data)
	return Formatted{Subject: subject, Data: data}
}

type NotFoundFormatter struct{}

func (NotFoundFormatter) Name() string { return "not-found" }

func (NotFoundFormatter) Supports(ev *Event) bool {
	return ev.Type == EventTypeNotFound
}

func (NotFoundFormatter) Format(ev *Event, flags EventNoticeFlags) Formatted {
	url := firstNonEmpty(ev.Source, ev.Request.URL())
	if url == "" {
		return Formatted{}
	}

	fields := mail.NewData().SetString("Url", url)
	if ev.Request != nil {
		fields.SetIfNotEmpty("Ip", ev.Request.ClientIP)
		fields.SetIfNotEmpty("UserAgent", ev.Request.UserAgent)
	}
	addDefaultFields(ev, fields)

	data := mail.NewData().SetMap("Fields", fields)
	addUserInfo(ev, data)
	return Formatted{Subject: fmt.Sprintf("%s 404: %s", NotificationType(ev, flags), url), Data: data}
}

type LogFormatter struct{}

func (LogFormatter) Name() string { return "log" }

func (LogFormatter) Supports(ev *Event) bool {
	return ev.Type == EventTypeLog
}

func (LogFormatter) Format(ev *Event, flags EventNoticeFlags) Formatted {
	title := firstNonEmpty(ev.Message, ev.Source)
	if title == "" {
		return Formatted{}
	}

	fields := mail.NewData().
		SetIfNotEmpty("Message", ev.Message).
		SetIfNotEmpty("Source", ev.Source).
		SetIfNotEmpty("Url", ev.Request.URL())
	addDefaultFields(ev, fields)

	data := mail.NewData().SetMap("Fields", fields)
	addUserInfo(ev, data)
	return Formatted{Subject: fmt.Sprintf("%s Log Message: %s", NotificationType(ev, flags), title), Data: data}
}

// DefaultFormatter handles every event type without a dedicated formatter.
type DefaultFormatter struct{}

func (DefaultFormatter) Name() string { return "default" }

func (DefaultFormatter) Supports(*Event) bool { return true }

func (DefaultFormatter) Format(ev *Event, flags EventNoticeFlags) Formatted {
	title := firstNonEmpty(ev.Message, ev.Source)
	if ev.Error != nil {
		title = firstNonEmpty(title, ev.Error.Message, ev.Error.Type)
	}
	if title == "" {
		return Formatted{}
	}

	eventType := firstNonEmpty(ev.Type, "Event")
	fields := mail.NewData().
		SetIfNotEmpty("Message", ev.Message).
		SetIfNotEmpty("Source", ev.Source).
		SetIfNotEmpty("Url", ev.Request.URL())
	addDefaultFields(ev, fields)

	data := mail.NewData().SetMap("Fields", fields)
	addUserInfo(ev, data)
	return Formatted{Subject: fmt.Sprintf("%s %s: %s", NotificationType(ev, flags), eventType, title), Data: data}
}

func addDefaultFields(ev *Event, fields mail.Data) {
	if len(ev.Tags) > 0 {
		fields.SetString("Tags", strings.Join(ev.Tags, ", "))
	}
	if ev.Value != nil {
		fields.SetString("Value", strconv.FormatFloat(*ev.Value, 'f', -1, 64))
	}
	fields.SetIfNotEmpty("Version", ev.Version)
}

func addUserInfo(ev *Event, data mail.Data) {
	if ui := ev.UserIdentity; ui != nil {
		data.SetIfNotEmpty("UserIdentity", ui.Identity)
		data.SetIfNotEmpty("UserName", ui.Name)
	}
	if ud := ev.UserDescription; ud != nil {
		data.SetIfNotEmpty("UserEmail", ud.EmailAddress)
		data.SetIfNotEmpty("UserDescription", ud.Description)
	}

	var display string
	if ui := ev.UserIdentity; ui != nil {
		display = firstNonEmpty(ui.Name, ui.Identity)
	}
	if ud := ev.UserDescription; ud != nil {
		display = firstNonEmpty(display, ud.EmailAddress)
	}
	data.SetIfNotEmpty("UserDisplayName", display)
}

// shortTypeName strips the namespace from a fully qualified type name.
func shortTypeName(t string) string {
	if i := strings.LastIndexAny(t, "./"); i >= 0 && i < len(t)-1 {
		return t[i+1:]
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
