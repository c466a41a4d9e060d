package rules

import (
	"fmt"
	"strings"
	"time"
)

// Record is one tenant data row handed to the evaluator, typically decoded JSON.
type Record = map[string]any

// PatternType selects the matcher used for a rule.
type PatternType string

const (
	PatternSOD       PatternType = "SOD"
	PatternThreshold PatternType = "THRESHOLD"
	PatternGeneric   PatternType = "GENERIC"
)

// RiskLevel classifies the severity of a rule.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// Valid reports whether l is a known risk level.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskCritical, RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

// Risk is the classification copied onto every violation a rule produces.
type Risk struct {
	Level RiskLevel `json:"level" yaml:"level"`
	Score int       `json:"score" yaml:"score"`
}

// Operator is a THRESHOLD comparison.
type Operator string

const (
	OpGT  Operator = "GT"
	OpLT  Operator = "LT"
	OpEQ  Operator = "EQ"
	OpNE  Operator = "NE"
	OpGTE Operator = "GTE"
	OpLTE Operator = "LTE"
)

// Aggregation reduces all records to a single value before a THRESHOLD comparison.
type Aggregation string

const (
	AggSum   Aggregation = "SUM"
	AggAvg   Aggregation = "AVG"
	AggMax   Aggregation = "MAX"
	AggMin   Aggregation = "MIN"
	AggCount Aggregation = "COUNT"
)

// Pattern is the declarative matcher definition. Only the fields relevant to Type
// are consulted.
type Pattern struct {
	Type PatternType `json:"type" yaml:"type"`

	// SOD
	ConflictingRoles []string `json:"conflictingRoles,omitempty" yaml:"conflictingRoles,omitempty"`
	RequiresAll      *bool    `json:"requiresAll,omitempty" yaml:"requiresAll,omitempty"`
	UserIDField      string   `json:"userIdField,omitempty" yaml:"userIdField,omitempty"`
	RolesField       string   `json:"rolesField,omitempty" yaml:"rolesField,omitempty"`

	// THRESHOLD and GENERIC
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// THRESHOLD
	Operator    Operator    `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value       float64     `json:"value,omitempty" yaml:"value,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`

	// GENERIC
	Condition     string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	ContextFields map[string]any `json:"contextFields,omitempty" yaml:"contextFields,omitempty"`
}

// Default field names for SOD patterns.
const (
	DefaultUserIDField = "userId"
	DefaultRolesField  = "roles"
)

// requiresAll returns the effective requiresAll flag, which defaults to true.
func (p *Pattern) requiresAll() bool {
	return p.RequiresAll == nil || *p.RequiresAll
}

func (p *Pattern) userIDField() string {
	if p.UserIDField == "" {
		return DefaultUserIDField
	}
	return p.UserIDField
}

func (p *Pattern) rolesField() string {
	if p.RolesField == "" {
		return DefaultRolesField
	}
	return p.RolesField
}

// Rule describes a detectable condition and its risk classification.
type Rule struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Pattern     Pattern `json:"pattern" yaml:"pattern"`
	Risk        Risk    `json:"risk" yaml:"risk"`
}

// Status is the review state of a violation.
type Status string

const (
	StatusDetected      Status = "DETECTED"
	StatusAcknowledged  Status = "ACKNOWLEDGED"
	StatusResolved      Status = "RESOLVED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// Valid reports whether s is one of the known violation statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDetected, StatusAcknowledged, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// ParseStatus parses a case-insensitive status name.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown violation status %q", s)
	}
	return status, nil
}

// Violation is a single rule match. Data holds the matched subset of the input.
type Violation struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId,omitempty"`
	RuleID    string         `json:"ruleId"`
	RuleName  string         `json:"ruleName"`
	Rule      *Rule          `json:"rule,omitempty"`
	Data      map[string]any `json:"data"`
	Risk      Risk           `json:"risk"`
	Timestamp time.Time      `json:"timestamp"`
	Status    Status         `json:"status"`
}

// Stats reports evaluator bookkeeping.
type Stats struct {
	CachedRules        int   `json:"cachedRules"`
	ViolationsDetected int64 `json:"violationsDetected"`
}
