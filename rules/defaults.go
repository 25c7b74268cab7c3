package rules

import "fmt"

// Field labels the default rules match on
const (
	LabelMemberID      = "Member ID"
	LabelPatientName   = "Patient Name"
	LabelNPI           = "NPI"
	LabelDiagnosisCode = "Diagnosis Code"
	LabelCPTCode       = "CPT Code"
	LabelDateOfService = "Date of Service"
	LabelTotalCharges  = "Total Charges"
)

const (
	// ICD-10-CM shape: one letter, two digits, optional decimal with up to four digits
	icd10Pattern = `^[A-Za-z][0-9]{2}(\.[0-9]{1,4})?$`
	// CPT: five numeric digits
	cptPattern = `^[0-9]{5}$`
)

// DefaultRuleConfig holds the thresholds baked into the built-in rules
type DefaultRuleConfig struct {
	// HighDollarThreshold flags claims whose amount exceeds it
	HighDollarThreshold float64
	// MinQualityScore flags documents scanned below it (0-100)
	MinQualityScore float64
}

// DefaultThresholds returns the stock thresholds
func DefaultThresholds() DefaultRuleConfig {
	return DefaultRuleConfig{
		HighDollarThreshold: 10000,
		MinQualityScore:     70,
	}
}

// DefaultRules returns the built-in rule set seeded into new engines
func DefaultRules(cfg DefaultRuleConfig) []*BusinessRule {
	return []*BusinessRule{
		{
			ID:             "eligibility-member-id",
			Name:           "Member ID Required",
			Description:    "The member ID must be present to verify coverage",
			Category:       CategoryEligibility,
			Conditions:     []Condition{{Field: LabelMemberID, Operator: OperatorIsNotEmpty}},
			ConditionLogic: LogicAnd,
			Actions: []RuleAction{
				{Type: ActionPass, Message: "Member ID present"},
				{Type: ActionFail, Message: "Member ID is missing", Suggestion: "Enter the member ID from the patient's insurance card"},
			},
			Priority: 10,
			IsActive: true,
		},
		{
			ID:             "eligibility-patient-name",
			Name:           "Patient Name Required",
			Description:    "The patient name should be present to match the member record",
			Category:       CategoryEligibility,
			Conditions:     []Condition{{Field: LabelPatientName, Operator: OperatorIsNotEmpty}},
			ConditionLogic: LogicAnd,
			Actions: []RuleAction{
				{Type: ActionPass, Message: "Patient name present"},
				{Type: ActionWarning, Message: "Patient name is missing"},
			},
			Priority: 20,
			IsActive: true,
		},
		{
			ID:          "code-npi-check-digit",
			Name:        "NPI Check Digit",
			Description: "The rendering provider NPI must be 10 digits with a valid Luhn check digit",
			Category:    CategoryCode,
			Conditions: []Condition{
				{Field: LabelNPI, Operator: OperatorExpression, Value: StringValue(`present && npi_valid(value)`)},
			},
			ConditionLogic: LogicAnd,
			Actions: []RuleAction{
				{Type: ActionPass, Message: "NPI is well formed"},
				{Type: ActionFail, Message: "NPI is missing or fails the check-digit test", Suggestion: "Verify the provider NPI against NPPES"},
			},
			Priority: 10,
			IsActive: true,
		},
		{
			ID:             "code-icd10-format",
			Name:           "ICD-10 Format",
			Description:    "Diagnosis code must look like an ICD-10 code (e.g. J06.9)",
			Category:       CategoryCode,
			Conditions:     []Condition{{Field: LabelDiagnosisCode, Operator: OperatorRegex, Value: StringValue(icd10Pattern)}},
			ConditionLogic: LogicAnd,
			Actions: []RuleAction{
				{Type: ActionPass, Message: "Diagnosis code format is valid"},
				{Type: ActionFail, Message: "Diagnosis code is missing or not a valid ICD-10 format", Suggestion: "Use the ICD-10-CM form: letter, two digits, optional decimal"},
			},
			Priority: 20,
			IsActive: true,
		},
		{
			ID:             "code-cpt-format",
			Name:           "CPT Format",
			Description:    "Procedure code must be a five digit CPT code",
			Category:       CategoryCode,
			Conditions:     []Condition{{Field: LabelCPTCode, Operator: OperatorRegex, Value: StringValue(cptPattern)}},
			ConditionLogic: LogicAnd,
			Actions: []RuleAction{
				{Type: ActionPass, Message: "CPT code format is valid"},
				{Type: ActionFail, Message: "CPT code is missing or not five digits", Suggestion: "Enter the five digit CPT procedure code"},
			},
			Priority: 30,
			IsActive: true,
		},
		{
			ID:          "business-date-of-service",
			Name:        "Date of Service Valid",
			Description: "A date of service must be present as MM/DD/YYYY or YYYY-MM-DD",
			Category:    CategoryBusinessRule,
			Conditions: []Condition{
				{Field: LabelDateOfService, Operator: OperatorExpression, Value: StringValue(`present && valid_date(value)`)},
				{Operator: OperatorExpression, Value: StringValue(`has(claim.dateOfService) && valid_date(claim.dateOfService)`)},
			},
			ConditionLogic: LogicOr,
			Actions: []RuleAction{
				{Type: ActionPass, Message: "Date of service present"},
				{Type: ActionFail, Message: "Date of service is missing or malformed", Suggestion: "Enter the date of service as MM/DD/YYYY"},
			},
			Priority: 10,
			IsActive: true,
		},
		{
			ID:          "business-high-dollar",
			Name:        "High Dollar Review",
			Description: fmt.Sprintf("Claims above $%.2f need additional review", cfg.HighDollarThreshold),
			Category:    CategoryBusinessRule,
			Conditions: []Condition{
				{Field: LabelTotalCharges, Operator: OperatorGreaterThan, Value: NumberValue(cfg.HighDollarThreshold)},
				{Operator: OperatorExpression, Value: StringValue(fmt.Sprintf(`has(claim.amount) && claim.amount > %.2f`, cfg.HighDollarThreshold))},
			},
			ConditionLogic: LogicOr,
			Actions: []RuleAction{
				{Type: ActionFlag, Message: fmt.Sprintf("Claim amount exceeds $%.2f", cfg.HighDollarThreshold)},
				{Type: ActionPass},
			},
			Priority: 20,
			IsActive: true,
		},
		{
			ID:          "document-quality",
			Name:        "Document Quality",
			Description: fmt.Sprintf("Scanned documents should score at least %.0f for reliable extraction", cfg.MinQualityScore),
			Category:    CategoryDocument,
			Conditions: []Condition{
				{Operator: OperatorExpression, Value: StringValue(fmt.Sprintf(`has(claim.qualityScore) && claim.qualityScore < %.2f`, cfg.MinQualityScore))},
			},
			ConditionLogic: LogicAnd,
			Actions: []RuleAction{
				{Type: ActionFlag, Message: "Document quality is below the extraction threshold", Suggestion: "Request a clearer scan of the claim document"},
				{Type: ActionPass},
			},
			Priority: 10,
			IsActive: true,
		},
	}
}
