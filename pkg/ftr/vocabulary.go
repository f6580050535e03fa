// Package ftr holds the AWS Foundational Technical Review vocabulary and
// the fixed prompts used to query documentation for FTR evidence.
package ftr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Competency is an AWS competency with its own FTR checklist
type Competency struct {
	Name   string
	Prefix string
	Title  string
}

var competencies = []Competency{
	{Name: "lambda", Prefix: "LAM", Title: "AWS Lambda - Serverless Delivery"},
	{Name: "eks", Prefix: "EKS", Title: "Amazon EKS - Containers Delivery"},
	{Name: "rds", Prefix: "RDS", Title: "Amazon RDS - Database Delivery"},
	{Name: "ec2", Prefix: "EC2", Title: "Amazon EC2/Windows - Compute Delivery"},
	{Name: "config", Prefix: "CFG", Title: "AWS Config - Governance"},
	{Name: "control-tower", Prefix: "CT", Title: "AWS Control Tower - Multi-Account"},
}

// CommonPrefixes are requirement prefixes shared by every competency:
// documentation, account governance, operations, network security,
// reliability and cost optimization.
var CommonPrefixes = []string{"DOC", "ACCT", "OPE", "NETSEC", "REL", "COST"}

var (
	ErrUnknownCompetency  = errors.New("unsupported competency")
	ErrInvalidRequirement = errors.New("invalid requirement id")

	requirementPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]*)-([0-9]{3})$`)
)

// Competencies returns the supported competencies in checklist order
func Competencies() []Competency {
	out := make([]Competency, len(competencies))
	copy(out, competencies)
	return out
}

// CompetencyNames returns the lower-case competency names
func CompetencyNames() []string {
	names := make([]string, len(competencies))
	for i, c := range competencies {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a competency by name, case-insensitively
func Lookup(name string) (Competency, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range competencies {
		if c.Name == name {
			return c, true
		}
	}
	return Competency{}, false
}

// IsSupportedCompetency reports whether name is a known competency
func IsSupportedCompetency(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// RequirementPrefix returns the competency-specific requirement prefix
func RequirementPrefix(competency string) (string, bool) {
	c, ok := Lookup(competency)
	if !ok {
		return "", false
	}
	return c.Prefix, true
}

// ValidateRequirement checks that requirementID looks like PREFIX-NNN and
// that the prefix is either common or belongs to the competency.
func ValidateRequirement(competency, requirementID string) error {
	c, ok := Lookup(competency)
	if !ok {
		return fmt.Errorf("%w %q (supported: %s)", ErrUnknownCompetency, competency, strings.Join(CompetencyNames(), ", "))
	}

	m := requirementPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(requirementID)))
	if m == nil {
		return fmt.Errorf("%w %q: expected PREFIX-NNN, e.g. DOC-001", ErrInvalidRequirement, requirementID)
	}

	prefix := m[1]
	if prefix == c.Prefix {
		return nil
	}
	for _, common := range CommonPrefixes {
		if prefix == common {
			return nil
		}
	}

	return fmt.Errorf("%w %q: prefix %s is not valid for %s (use %s or one of %s)",
		ErrInvalidRequirement, requirementID, prefix, c.Name, c.Prefix, strings.Join(CommonPrefixes, ", "))
}
