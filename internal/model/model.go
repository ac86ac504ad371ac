// Package model defines the data types shared across the extraction pipeline.
package model

import (
	"time"
)

// RawDocument is the validated input to a pipeline run. It is created once at
// intake and never mutated afterwards.
type RawDocument struct {
	ID           string `json:"id"`
	Content      []byte `json:"-"`
	DeclaredType string `json:"declared_type"`
	DetectedType string `json:"detected_type"`
	Filename     string `json:"filename,omitempty"` // diagnostics only
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256"`
}

// AttemptStatus classifies the outcome of one provider invocation.
type AttemptStatus string

const (
	StatusOK             AttemptStatus = "ok"
	StatusLowConfidence  AttemptStatus = "low_confidence"
	StatusTransientError AttemptStatus = "transient_error"
	StatusPermanentError AttemptStatus = "permanent_error"
	StatusTimeout        AttemptStatus = "timeout"
)

// EntityHint is a typed key/value pair returned by a provider that supports
// entity extraction, carrying the provider-native confidence normalized to
// the pipeline's 0–100 scale.
type EntityHint struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractionAttempt records one provider invocation. Immutable once recorded;
// the orchestrator appends attempts to an ordered, append-only history.
type ExtractionAttempt struct {
	ID         string        `json:"id"`
	Provider   string        `json:"provider"`
	Tier       int           `json:"tier"`
	Seq        int           `json:"seq"` // position in the run's attempt history
	Status     AttemptStatus `json:"status"`
	Text       string        `json:"text,omitempty"`
	Entities   []EntityHint  `json:"entities,omitempty"`
	Confidence float64       `json:"confidence"` // 0–100
	Latency    time.Duration `json:"latency_ns"`
	StartedAt  time.Time     `json:"started_at"`
	Error      string        `json:"error,omitempty"`
}

// Usable reports whether the attempt produced any material that the field
// extractor can work with. Failed attempts may still carry partial text.
func (a ExtractionAttempt) Usable() bool {
	return a.Text != "" || len(a.Entities) > 0
}

// CandidateField is one proposed value for one logical field, with its
// provenance. Multiple candidates may exist per field key.
type CandidateField struct {
	FieldKey   string  `json:"field_key"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"` // 0–100, never above the source attempt's
	AttemptID  string  `json:"attempt_id"`
	Provider   string  `json:"provider"`
	Tier       int     `json:"tier"`
	Seq        int     `json:"seq"`
}

// PersonalInfo holds the consumer identity block. Every field is optional and
// independently confidence-scored via the field confidence map.
type PersonalInfo struct {
	Name        string `json:"name,omitempty"`
	Address     string `json:"address,omitempty"`
	SSN         string `json:"ssn,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// BureauScore is one bureau's reported score.
type BureauScore struct {
	Score    int    `json:"score"`
	Date     string `json:"date,omitempty"` // MM/DD/YYYY
	RangeMin int    `json:"range_min"`
	RangeMax int    `json:"range_max"`
}

// AccountStatus is the reported standing of a tradeline.
type AccountStatus string

const (
	AccountCurrent       AccountStatus = "current"
	AccountThirtyLate    AccountStatus = "30_days_late"
	AccountSixtyLate     AccountStatus = "60_days_late"
	AccountNinetyLate    AccountStatus = "90_days_late"
	AccountOneTwentyLate AccountStatus = "120_days_late"
	AccountChargeOff     AccountStatus = "charge_off"
	AccountCollection    AccountStatus = "collection"
	AccountClosed        AccountStatus = "closed"
	AccountPaid          AccountStatus = "paid"
)

// KnownAccountStatuses is the enumerated status vocabulary. Unknown values are
// kept but flagged by the schema validator.
var KnownAccountStatuses = []AccountStatus{
	AccountCurrent, AccountThirtyLate, AccountSixtyLate, AccountNinetyLate,
	AccountOneTwentyLate, AccountChargeOff, AccountCollection, AccountClosed,
	AccountPaid,
}

// Account is one tradeline on the report.
type Account struct {
	CreditorName  string        `json:"creditor_name,omitempty"`
	AccountNumber string        `json:"account_number,omitempty"` // masked, e.g. ****1234
	AccountType   string        `json:"account_type,omitempty"`   // revolving, installment, mortgage, ...
	Balance       *float64      `json:"balance,omitempty"`
	CreditLimit   *float64      `json:"credit_limit,omitempty"`
	Status        AccountStatus `json:"status,omitempty"`
	DateOpened    string        `json:"date_opened,omitempty"`
	LastActivity  string        `json:"last_activity,omitempty"`
}

// NegativeItem is a derogatory entry (late payment, charge-off, collection).
type NegativeItem struct {
	ItemType     string   `json:"item_type,omitempty"`
	CreditorName string   `json:"creditor_name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Date         string   `json:"date,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
}

// Inquiry is a credit pull by a company.
type Inquiry struct {
	Company string `json:"company,omitempty"`
	Date    string `json:"date,omitempty"`
	Type    string `json:"type,omitempty"` // hard or soft when stated
}

// PublicRecord is a court or registry entry (bankruptcy, lien, judgment).
type PublicRecord struct {
	RecordType string   `json:"record_type,omitempty"`
	Court      string   `json:"court,omitempty"`
	Date       string   `json:"date,omitempty"`
	Status     string   `json:"status,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
}

// KnownBureaus enumerates the bureau keys the validator recognizes.
var KnownBureaus = []string{"equifax", "experian", "transunion"}

// CreditReportRecord is the canonical structured output. The record and its
// field confidence map are parallel structures keyed by field key.
type CreditReportRecord struct {
	PersonalInfo  PersonalInfo           `json:"personal_info"`
	CreditScores  map[string]BureauScore `json:"credit_scores,omitempty"`
	Accounts      []Account              `json:"accounts,omitempty"`
	NegativeItems []NegativeItem         `json:"negative_items,omitempty"`
	Inquiries     []Inquiry              `json:"inquiries,omitempty"`
	PublicRecords []PublicRecord         `json:"public_records,omitempty"`
}

// Completeness holds per-section and aggregate population fractions (0–100).
type Completeness struct {
	Sections map[string]float64 `json:"sections"`
	Overall  float64            `json:"overall"`
}

// ViolationType classifies a compliance finding.
type ViolationType string

const (
	ViolationObsoleteInfo     ViolationType = "fcra_obsolete_info"
	ViolationAccuracy         ViolationType = "fcra_accuracy"
	ViolationIncompleteInfo   ViolationType = "fcra_incomplete_info"
	ViolationMetro2Format     ViolationType = "metro2_format_error"
	ViolationDuplicateAccount ViolationType = "duplicate_account"
	ViolationBalance          ViolationType = "inaccurate_balance"
)

// ViolationSeverity grades a compliance finding.
type ViolationSeverity string

const (
	SeverityLow      ViolationSeverity = "low"
	SeverityMedium   ViolationSeverity = "medium"
	SeverityHigh     ViolationSeverity = "high"
	SeverityCritical ViolationSeverity = "critical"
)

// Violation is one rule-based FCRA / Metro 2 finding over the fused record.
type Violation struct {
	Type            ViolationType     `json:"type"`
	Severity        ViolationSeverity `json:"severity"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	AffectedAccount string            `json:"affected_account,omitempty"`
	LegalBasis      string            `json:"legal_basis,omitempty"`
	DisputeReason   string            `json:"dispute_reason,omitempty"`
}

// ExtractionResult is the complete output of one pipeline run, always
// returned to the caller even when extraction substantially failed.
type ExtractionResult struct {
	RunID             string              `json:"run_id"`
	Record            CreditReportRecord  `json:"record"`
	FieldConfidence   map[string]float64  `json:"field_confidence"`
	OverallConfidence float64             `json:"overall_confidence"` // 0–100, always defined
	Completeness      Completeness        `json:"completeness"`
	ProcessingMethod  string              `json:"processing_method"`
	Warnings          []string            `json:"warnings"`
	Violations        []Violation         `json:"violations,omitempty"`
	Attempts          []ExtractionAttempt `json:"attempts"`
}
