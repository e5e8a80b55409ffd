// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"strings"
	"time"
)

// Event types with a dedicated formatter.
const (
	EventTypeError    = "error"
	EventTypeLog      = "log"
	EventTypeNotFound = "404"
)

// CriticalTag marks an event as critical; matching is case-insensitive.
const CriticalTag = "Critical"

type User struct {
	ID           string
	FullName     string
	EmailAddress string
	// VerifyEmailAddressToken is empty once the address is verified.
	VerifyEmailAddressToken string
	PasswordResetToken      string
}

type Organization struct {
	ID         string
	Name       string
	IsFreePlan bool
}

type Project struct {
	ID             string
	Name           string
	OrganizationID string
}

type Invite struct {
	Token        string
	EmailAddress string
	DateAdded    time.Time
}

// ErrorInfo is the innermost error of an error event.
type ErrorInfo struct {
	Type    string
	Message string
	// Method is the fully qualified method that threw, if known.
	Method string
}

// RequestInfo describes the HTTP request an event was captured in.
type RequestInfo struct {
	HTTPMethod string
	Host       string
	Path       string
	ClientIP   string
	UserAgent  string
}

// URL returns host and path of the request, or just the path.
func (r *RequestInfo) URL() string {
	if r == nil {
		return ""
	}
	if r.Host == "" {
		return r.Path
	}
	return r.Host + r.Path
}

type UserIdentity struct {
	Identity string
	Name     string
}

type UserDescription struct {
	EmailAddress string
	Description  string
}

// Event is a single occurrence submitted to a project.
type Event struct {
	ID        string
	StackID   string
	ProjectID string
	Type      string
	Source    string
	Message   string
	Tags      []string
	Value     *float64
	Version   string
	Date      time.Time

	Error           *ErrorInfo
	Request         *RequestInfo
	UserIdentity    *UserIdentity
	UserDescription *UserDescription
}

// IsCritical reports whether the event carries the critical tag.
func (e *Event) IsCritical() bool {
	for _, t := range e.Tags {
		if strings.EqualFold(strings.TrimSpace(t), CriticalTag) {
			return true
		}
	}
	return false
}

// EventNoticeFlags describes why an event notice is sent.
type EventNoticeFlags struct {
	IsNew            bool
	IsRegression     bool
	TotalOccurrences int
}

// StackSummary is one stack listed in a daily summary.
type StackSummary struct {
	ID       string
	Title    string
	TypeName string
	Path     string
}

// DailySummary holds the aggregated counts for one project and day.
type DailySummary struct {
	StartDate          time.Time
	Count              int
	Unique             int
	New                int
	Fixed              int
	Blocked            int
	TooBig             int
	HasSubmittedEvents bool
	IsFreePlan         bool
	MostFrequent       []StackSummary
	Newest             []StackSummary
}
