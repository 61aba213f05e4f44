package contract

import (
	"fmt"
	"strings"

	"github.com/warp/payment-schedule/schedule"
)

// Attachment is a file attached to a contract or one of its terms.
type Attachment struct {
	FileName     string `json:"fileName"`
	DocumentType string `json:"documentType,omitempty"`
}

// IsContractDocument reports whether a carries the contract-document marker.
// Uses the same test as the schedule's delete refusal.
func (a Attachment) IsContractDocument(rules schedule.Rules) bool {
	return schedule.IsContractDocument(schedule.PaymentTerm{
		DocumentType: a.DocumentType,
		FileName:     a.FileName,
	}, rules)
}

// ValidateAttachments checks the attachment policy of a contract.
func ValidateAttachments(files []Attachment, rules schedule.Rules) []string {
	errs := []string{}

	named := 0
	for _, f := range files {
		if strings.TrimSpace(f.FileName) != "" {
			named++
		}
	}
	if named < rules.MinRequiredFiles {
		errs = append(errs, fmt.Sprintf("At least %d file(s) must be attached (currently %d)", rules.MinRequiredFiles, named))
	}

	if rules.RequireContractFile {
		found := false
		for _, f := range files {
			if f.IsContractDocument(rules) {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, "A signed contract document must be attached")
		}
	}
	return errs
}

// AttachmentsFromTerms collects the files referenced by schedule terms.
func AttachmentsFromTerms(terms []schedule.PaymentTerm) []Attachment {
	var out []Attachment
	for _, t := range terms {
		if t.FileName == "" && t.DocumentType == "" {
			continue
		}
		out = append(out, Attachment{FileName: t.FileName, DocumentType: t.DocumentType})
	}
	return out
}
