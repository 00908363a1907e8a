package model

// Fields is the structured output of the field-extraction model. A nil map
// means the model could not extract anything.
type Fields map[string]string

// Field names requested from the field-extraction model.
const (
	FieldPolicyNumber    = "policy_number"
	FieldPolicyName      = "policy_name"
	FieldPolicyStartDate = "policy_start_date"
	FieldPolicyEndDate   = "policy_end_date"

	FieldExpertName       = "expert_name"
	FieldAppraisalDate    = "appraisal_date"
	FieldCommercialValue  = "commercial_value"
	FieldRealizationValue = "realization_value"
	FieldAppraisalOwner   = "owner"

	FieldInscriptionNumber = "inscription_number"
	FieldLegalName         = "legal_name"
	FieldInscriptionDate   = "inscription_date"
)

// ProcessingRecord is the state shared by every workflow variant. It is
// created when a document's workflow starts and only that workflow's stages
// change it.
type ProcessingRecord struct {
	RecordID             string  `json:"record_id"`
	DocumentContentTotal string  `json:"document_content_total,omitempty"`
	DocumentContentLLM   string  `json:"document_content_llm,omitempty"`
	PeriodMonth          string  `json:"period_month,omitempty"`
	PeriodYear           string  `json:"period_year,omitempty"`
	Outcome              Outcome `json:"outcome"`
}

// NewProcessingRecord starts a record for doc.
func NewProcessingRecord(doc DocumentContract) ProcessingRecord {
	return ProcessingRecord{
		RecordID:    doc.RecordID,
		PeriodMonth: doc.PeriodMonth,
		PeriodYear:  doc.PeriodYear,
	}
}

// ClearText drops the large text fields once they have been persisted.
func (r *ProcessingRecord) ClearText() {
	r.DocumentContentTotal = ""
	r.DocumentContentLLM = ""
}

func (r ProcessingRecord) entry(childIndex int, fields Fields) MetadataEntry {
	return MetadataEntry{
		RecordID:    r.RecordID,
		ChildIndex:  childIndex,
		PeriodMonth: r.PeriodMonth,
		PeriodYear:  r.PeriodYear,
		Fields:      fields,
	}
}

// MetadataEntry is one row written to metadata storage.
type MetadataEntry struct {
	RecordID    string `json:"record_id"`
	ChildIndex  int    `json:"child_index"`
	PeriodMonth string `json:"period_month,omitempty"`
	PeriodYear  string `json:"period_year,omitempty"`
	Fields      Fields `json:"fields"`
}

// PolicyRecord is the single-record state of an insurance policy.
type PolicyRecord struct {
	ProcessingRecord
	PolicyNumber    string `json:"policy_number,omitempty"`
	PolicyName      string `json:"policy_name,omitempty"`
	PolicyStartDate string `json:"policy_start_date,omitempty"`
	PolicyEndDate   string `json:"policy_end_date,omitempty"`
}

// Metadata returns the entry persisted for the policy.
func (p PolicyRecord) Metadata() MetadataEntry {
	return p.entry(0, Fields{
		FieldPolicyNumber:    p.PolicyNumber,
		FieldPolicyName:      p.PolicyName,
		FieldPolicyStartDate: p.PolicyStartDate,
		FieldPolicyEndDate:   p.PolicyEndDate,
	})
}

// AppraisalRecord is the single-record state of a property appraisal.
type AppraisalRecord struct {
	ProcessingRecord
	ExpertName       string `json:"expert_name,omitempty"`
	AppraisalDate    string `json:"appraisal_date,omitempty"`
	CommercialValue  string `json:"commercial_value,omitempty"`
	RealizationValue string `json:"realization_value,omitempty"`
	Owner            string `json:"owner,omitempty"`
}

// Metadata returns the entry persisted for the appraisal.
func (a AppraisalRecord) Metadata() MetadataEntry {
	return a.entry(0, Fields{
		FieldExpertName:       a.ExpertName,
		FieldAppraisalDate:    a.AppraisalDate,
		FieldCommercialValue:  a.CommercialValue,
		FieldRealizationValue: a.RealizationValue,
		FieldAppraisalOwner:   a.Owner,
	})
}

// RegistrationChild is one registration entry found in a registration
// document. Each child tracks its own outcome.
type RegistrationChild struct {
	ProcessingRecord
	Index             int    `json:"index"`
	InscriptionNumber string `json:"inscription_number,omitempty"`
	LegalName         string `json:"legal_name,omitempty"`
	InscriptionDate   string `json:"inscription_date,omitempty"`
}

// Metadata returns the entry persisted for the child. Children whose fields
// could not be extracted are written with an empty field set.
func (c RegistrationChild) Metadata() MetadataEntry {
	fields := Fields{}
	if c.Outcome.Transform.Ok() {
		fields[FieldInscriptionNumber] = c.InscriptionNumber
		fields[FieldLegalName] = c.LegalName
		fields[FieldInscriptionDate] = c.InscriptionDate
	}
	return c.entry(c.Index, fields)
}

// RegistrationRecord is the multi-child state of a registration document.
type RegistrationRecord struct {
	ProcessingRecord
	Children []RegistrationChild `json:"children"`
}
