// Package callify holds the domain types, collaborator interfaces and error
// taxonomy shared by the call pipeline, the website analyzer and the contact relay.
package callify

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for quota records (UTC).
const DateLayout = "2006-01-02"

// QuotaRecord counts the calls placed by one identity on one UTC day.
type QuotaRecord struct {
	Identity    string    `json:"identity" firestore:"identity"`
	Date        string    `json:"date" firestore:"date"`
	Count       int       `json:"count" firestore:"count"`
	LastUpdated time.Time `json:"lastUpdated" firestore:"lastUpdated"`
}

// QuotaKey returns the composite storage key for an identity and day.
func QuotaKey(identity, date string) string {
	return identity + "_" + date
}

// DayOf formats t as the UTC calendar day used in quota records.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// EndOfDay returns 23:59:59 UTC on the day containing t.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}

// Analysis is the structured summary the LLM produces for a business website.
type Analysis struct {
	BusinessName string   `json:"businessName" firestore:"businessName"`
	Industry     string   `json:"industry" firestore:"industry"`
	Services     []string `json:"services" firestore:"services"`
	Summary      string   `json:"summary" firestore:"summary"`
	CallScript   string   `json:"callScript" firestore:"callScript"`
	Questions    []string `json:"questions" firestore:"questions"`
}

// AnalysisRecord is a persisted analysis for a website. Records are append-only.
type AnalysisRecord struct {
	ID          string    `json:"id" firestore:"-"`
	WebsiteURL  string    `json:"websiteUrl" firestore:"websiteUrl"`
	Domain      string    `json:"domain" firestore:"domain"`
	Analysis    Analysis  `json:"analysis" firestore:"analysis"`
	SnapshotURI string    `json:"snapshotUri,omitempty" firestore:"snapshotUri,omitempty"`
	Timestamp   time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
}

// CallLogRecord is the audit entry written once per successful dispatch.
type CallLogRecord struct {
	ID            string    `json:"id" firestore:"-"`
	Name          string    `json:"name" firestore:"name"`
	PhoneNumber   string    `json:"phoneNumber" firestore:"phoneNumber"`
	WebsiteURL    string    `json:"websiteUrl" firestore:"websiteUrl"`
	CallID        string    `json:"callId" firestore:"callId"`
	Status        string    `json:"status" firestore:"status"`
	ClientAddress string    `json:"clientAddress" firestore:"clientAddress"`
	Timestamp     time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
}

// ContactStatus tracks the delivery state of a contact submission.
type ContactStatus string

// Contact submission states.
const (
	ContactPending ContactStatus = "pending"
	ContactSent    ContactStatus = "sent"
	ContactFailed  ContactStatus = "failed"
)

// ContactSubmission is a stored contact-form message.
type ContactSubmission struct {
	ID            string        `json:"id" firestore:"-"`
	Name          string        `json:"name" firestore:"name"`
	Email         string        `json:"email" firestore:"email"`
	Message       string        `json:"message" firestore:"message"`
	ClientAddress string        `json:"clientAddress" firestore:"clientAddress"`
	Status        ContactStatus `json:"status" firestore:"status"`
	Timestamp     time.Time     `json:"timestamp" firestore:"timestamp,serverTimestamp"`
}

// CallRequest is the inbound request to place an outbound call.
type CallRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	WebsiteURL  string `json:"websiteUrl"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (r CallRequest) Trimmed() CallRequest {
	return CallRequest{
		Name:        strings.TrimSpace(r.Name),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
		WebsiteURL:  strings.TrimSpace(r.WebsiteURL),
	}
}

// CallResult is the provider's acknowledgement of a dispatched call.
type CallResult struct {
	CallID string          `json:"call_id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

// CallStatus is the provider's view of an existing call.
type CallStatus struct {
	CallID string          `json:"call_id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

// CallEvent is published after a call has been dispatched and logged.
type CallEvent struct {
	Event         string    `json:"event"`
	CallID        string    `json:"call_id"`
	Status        string    `json:"status"`
	WebsiteURL    string    `json:"website_url"`
	ClientAddress string    `json:"client_address"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventCallDispatched names the event emitted for a dispatched call.
const EventCallDispatched = "call.dispatched"
