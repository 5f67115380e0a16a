package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Internal field names, shared by the field registry, the differencer and the
// import engine. Field-selection input is validated against these.
const (
	FieldIdentifier        = "identifier"
	FieldTitle             = "title"
	FieldDescription       = "description"
	FieldStatus            = "status"
	FieldPlannedStart      = "plannedStart"
	FieldActualStart       = "actualStart"
	FieldPlannedEnd        = "plannedEnd"
	FieldActualEnd         = "actualEnd"
	FieldDefaultAidType    = "defaultAidType"
	FieldDefaultFinance    = "defaultFinanceType"
	FieldDefaultFlowType   = "defaultFlowType"
	FieldDefaultTiedStatus = "defaultTiedStatus"
	FieldCollaborationType = "collaborationType"

	FieldSectors           = "sectorAllocations"
	FieldParticipatingOrgs = "participatingOrganizations"
	FieldTransactions      = "transactions"
)

// CanonicalActivity is the single normalized shape both the local record and
// the external payload are converted into before any comparison. Downstream
// code never re-sniffs the external format.
type CanonicalActivity struct {
	Identifier  string         `json:"identifier"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      ActivityStatus `json:"status"`

	PlannedStartDate *time.Time `json:"planned_start_date"`
	ActualStartDate  *time.Time `json:"actual_start_date"`
	PlannedEndDate   *time.Time `json:"planned_end_date"`
	ActualEndDate    *time.Time `json:"actual_end_date"`

	DefaultAidType     string `json:"default_aid_type"`
	DefaultFinanceType string `json:"default_finance_type"`
	DefaultFlowType    string `json:"default_flow_type"`
	DefaultTiedStatus  string `json:"default_tied_status"`
	CollaborationType  string `json:"collaboration_type"`

	Sectors           []CanonicalSector           `json:"sectors"`
	ParticipatingOrgs []CanonicalParticipatingOrg `json:"participating_orgs"`
	Transactions      []CanonicalTransaction      `json:"transactions"`
}

type CanonicalSector struct {
	Vocabulary string          `json:"vocabulary"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

type CanonicalParticipatingOrg struct {
	Ref      string           `json:"ref"`
	Name     string           `json:"name"`
	Role     OrganizationRole `json:"role"`
	TypeCode string           `json:"type_code"`
}

type CanonicalTransaction struct {
	Type                string          `json:"type"`
	Date                *time.Time      `json:"date"`
	Value               decimal.Decimal `json:"value"`
	Currency            string          `json:"currency"`
	ProviderRef         string          `json:"provider_ref"`
	ProviderName        string          `json:"provider_name"`
	ReceiverRef         string          `json:"receiver_ref"`
	ReceiverName        string          `json:"receiver_name"`
	AidType             string          `json:"aid_type"`
	FinanceType         string          `json:"finance_type"`
	FlowType            string          `json:"flow_type"`
	TiedStatus          string          `json:"tied_status"`
	DisbursementChannel string          `json:"disbursement_channel"`
	Description         string          `json:"description"`
}

// ScalarFieldNames lists the importable scalar fields in registry order.
// The identifier is compared but never imported (it keys the record).
func ScalarFieldNames() []string {
	return []string{
		FieldTitle, FieldDescription, FieldStatus,
		FieldPlannedStart, FieldActualStart, FieldPlannedEnd, FieldActualEnd,
		FieldDefaultAidType, FieldDefaultFinance, FieldDefaultFlowType,
		FieldDefaultTiedStatus, FieldCollaborationType,
	}
}

func CollectionFieldNames() []string {
	return []string{FieldSectors, FieldParticipatingOrgs, FieldTransactions}
}

// ScalarValue renders a scalar field as the string the differencer compares.
// Dates render as ISO dates; nil dates and empty strings both render "".
func (c *CanonicalActivity) ScalarValue(field string) string {
	switch field {
	case FieldIdentifier:
		return c.Identifier
	case FieldTitle:
		return c.Title
	case FieldDescription:
		return c.Description
	case FieldStatus:
		return string(c.Status)
	case FieldPlannedStart:
		return isoDate(c.PlannedStartDate)
	case FieldActualStart:
		return isoDate(c.ActualStartDate)
	case FieldPlannedEnd:
		return isoDate(c.PlannedEndDate)
	case FieldActualEnd:
		return isoDate(c.ActualEndDate)
	case FieldDefaultAidType:
		return c.DefaultAidType
	case FieldDefaultFinance:
		return c.DefaultFinanceType
	case FieldDefaultFlowType:
		return c.DefaultFlowType
	case FieldDefaultTiedStatus:
		return c.DefaultTiedStatus
	case FieldCollaborationType:
		return c.CollaborationType
	}
	return ""
}

// CollectionCount returns the element count the differencer compares.
func (c *CanonicalActivity) CollectionCount(field string) int {
	switch field {
	case FieldSectors:
		return len(c.Sectors)
	case FieldParticipatingOrgs:
		return len(c.ParticipatingOrgs)
	case FieldTransactions:
		return len(c.Transactions)
	}
	return 0
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
