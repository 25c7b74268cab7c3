package validation

import (
	"strings"

	"github.com/liamcoop/claims/rules"
)

// Document types tracked by the document stage
const (
	DocClaimForm      = "claim_form"
	DocOperativeNotes = "operative_notes"
	DocItemizedBill   = "itemized_bill"
)

// RequiredDocumentsCheck names the synthesized document-set check
const RequiredDocumentsCheck = "Required Documents"

// surgical CPT range (Surgery section of CPT)
const (
	surgicalCPTMin = 10000
	surgicalCPTMax = 69999
)

// document types that are themselves a claim form
var claimFormTypes = map[string]bool{
	"claim_form": true,
	"cms1500":    true,
	"cms_1500":   true,
	"ub04":       true,
	"ub_04":      true,
}

// DocumentConfig tunes the document requirements
type DocumentConfig struct {
	// HighDollarThreshold requires an itemized bill above it
	HighDollarThreshold float64
}

// DefaultDocumentConfig matches the default high-dollar rule
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{HighDollarThreshold: rules.DefaultThresholds().HighDollarThreshold}
}

type documentStage struct {
	executor CategoryExecutor
	config   DocumentConfig
}

// NewDocumentStage runs document rules and checks required against received documents
func NewDocumentStage(executor CategoryExecutor, config DocumentConfig) Stage {
	return &documentStage{executor: executor, config: config}
}

func (s *documentStage) Category() rules.Category {
	return rules.CategoryDocument
}

// Run returns the document sets even when the rules fail, so a degraded summary
// can still report missing documents
func (s *documentStage) Run(ec *rules.ExecutionContext) (StageSummary, error) {
	required := RequiredDocuments(ec, s.config)
	received := ReceivedDocuments(ec)
	missing := MissingDocuments(required, received)

	summary := StageSummary{
		Category:          rules.CategoryDocument,
		RequiredDocuments: required,
		ReceivedDocuments: received,
		MissingDocuments:  missing,
	}

	checks, err := runChecks(s.executor, ec, rules.CategoryDocument)
	if err != nil {
		return summary, err
	}
	checks = append(checks, requiredDocumentsCheck(missing))

	reduced := Summarize(rules.CategoryDocument, checks)
	summary.OverallStatus = reduced.OverallStatus
	summary.Checks = reduced.Checks
	return summary, nil
}

func requiredDocumentsCheck(missing []string) rules.ValidationCheck {
	check := rules.ValidationCheck{
		Category:    rules.CategoryDocument,
		Name:        RequiredDocumentsCheck,
		Description: "All documents required for this claim type have been received",
		Status:      rules.StatusPass,
	}
	if len(missing) > 0 {
		check.Status = rules.StatusFail
		check.Details = "Missing documents: " + strings.Join(missing, ", ")
		check.Suggestion = "Request " + strings.Join(missing, ", ") + " from the provider"
	}
	return check
}

// RequiredDocuments lists the documents a claim needs: always a claim form, operative
// notes for surgical claims and an itemized bill above the high-dollar threshold
func RequiredDocuments(ec *rules.ExecutionContext, config DocumentConfig) []string {
	required := []string{DocClaimForm}
	if ec == nil {
		return required
	}
	if isSurgical(ec) {
		required = append(required, DocOperativeNotes)
	}
	if amount, ok := claimAmount(ec); ok && config.HighDollarThreshold > 0 && amount > config.HighDollarThreshold {
		required = append(required, DocItemizedBill)
	}
	return required
}

// ReceivedDocuments lists the documents on file for a claim, deduplicated in first-seen order
func ReceivedDocuments(ec *rules.ExecutionContext) []string {
	received := []string{}
	if ec == nil {
		return received
	}

	seen := make(map[string]bool)
	add := func(doc string) {
		doc = normalizeDocType(doc)
		if doc == "" || seen[doc] {
			return
		}
		seen[doc] = true
		received = append(received, doc)
	}

	add(ec.DocumentType)
	for _, doc := range ec.Metadata.ReceivedDocuments {
		add(doc)
	}
	if notes, ok := ec.Metadata.OperativeNotes(); ok && notes {
		add(DocOperativeNotes)
	}
	return received
}

// MissingDocuments returns required entries absent from received, in required order
func MissingDocuments(required, received []string) []string {
	have := make(map[string]bool, len(received))
	for _, doc := range received {
		have[doc] = true
	}

	missing := []string{}
	for _, doc := range required {
		if !have[doc] {
			missing = append(missing, doc)
		}
	}
	return missing
}

func normalizeDocType(doc string) string {
	doc = strings.ToLower(strings.TrimSpace(doc))
	doc = strings.NewReplacer(" ", "_", "-", "_").Replace(doc)
	if claimFormTypes[doc] {
		return DocClaimForm
	}
	return doc
}

func isSurgical(ec *rules.ExecutionContext) bool {
	if strings.EqualFold(strings.TrimSpace(ec.Metadata.ClaimType), "surgical") {
		return true
	}
	for _, f := range ec.Fields {
		if f.Label != rules.LabelCPTCode {
			continue
		}
		code, ok := rules.ParseDecimal(f.Value)
		if ok && code >= surgicalCPTMin && code <= surgicalCPTMax && len(strings.TrimSpace(f.Value)) == 5 {
			return true
		}
	}
	return false
}

// claimAmount prefers the context amount over the Total Charges field
func claimAmount(ec *rules.ExecutionContext) (float64, bool) {
	if ec.ClaimAmount != nil {
		return *ec.ClaimAmount, true
	}
	if f, ok := ec.Field(rules.LabelTotalCharges); ok {
		return rules.ParseDecimal(f.Value)
	}
	return 0, false
}
