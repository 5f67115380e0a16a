package models

import (
	"context"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"gorm.io/gorm"
)

type AidActivity struct {
	ID             int    `gorm:"primary_key" json:"id"`
	IatiIdentifier string `gorm:"index;size:255" json:"iati_identifier"`
	Title          string `gorm:"type:text" json:"title"`
	Description    string `gorm:"type:text" json:"description"`
	Status         string `gorm:"size:20;index" json:"status"`

	PlannedStartDate *time.Time `json:"planned_start_date"`
	ActualStartDate  *time.Time `json:"actual_start_date"`
	PlannedEndDate   *time.Time `json:"planned_end_date"`
	ActualEndDate    *time.Time `json:"actual_end_date"`

	DefaultAidType     string `gorm:"size:10" json:"default_aid_type"`
	DefaultFinanceType string `gorm:"size:10" json:"default_finance_type"`
	DefaultFlowType    string `gorm:"size:10" json:"default_flow_type"`
	DefaultTiedStatus  string `gorm:"size:10" json:"default_tied_status"`
	CollaborationType  string `gorm:"size:10" json:"collaboration_type"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetAidActivity(ctx context.Context, id int) (*AidActivity, error) {
	db := config.GetDB()
	var result AidActivity

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// ScalarValue renders a local scalar field the same way the canonical record does,
// so both sides of a diff go through identical formatting.
func (a *AidActivity) ScalarValue(field string) string {
	switch field {
	case FieldIdentifier:
		return a.IatiIdentifier
	case FieldTitle:
		return a.Title
	case FieldDescription:
		return a.Description
	case FieldStatus:
		return a.Status
	case FieldPlannedStart:
		return isoDate(a.PlannedStartDate)
	case FieldActualStart:
		return isoDate(a.ActualStartDate)
	case FieldPlannedEnd:
		return isoDate(a.PlannedEndDate)
	case FieldActualEnd:
		return isoDate(a.ActualEndDate)
	case FieldDefaultAidType:
		return a.DefaultAidType
	case FieldDefaultFinance:
		return a.DefaultFinanceType
	case FieldDefaultFlowType:
		return a.DefaultFlowType
	case FieldDefaultTiedStatus:
		return a.DefaultTiedStatus
	case FieldCollaborationType:
		return a.CollaborationType
	}
	return ""
}

// ApplyScalarFromCanonical overwrites one scalar field from the external
// canonical record. Unknown field names are a no-op; the import boundary has
// already rejected them.
func (a *AidActivity) ApplyScalarFromCanonical(field string, ext *CanonicalActivity) {
	switch field {
	case FieldTitle:
		a.Title = ext.Title
	case FieldDescription:
		a.Description = ext.Description
	case FieldStatus:
		a.Status = string(ext.Status)
	case FieldPlannedStart:
		a.PlannedStartDate = copyDate(ext.PlannedStartDate)
	case FieldActualStart:
		a.ActualStartDate = copyDate(ext.ActualStartDate)
	case FieldPlannedEnd:
		a.PlannedEndDate = copyDate(ext.PlannedEndDate)
	case FieldActualEnd:
		a.ActualEndDate = copyDate(ext.ActualEndDate)
	case FieldDefaultAidType:
		a.DefaultAidType = ext.DefaultAidType
	case FieldDefaultFinance:
		a.DefaultFinanceType = ext.DefaultFinanceType
	case FieldDefaultFlowType:
		a.DefaultFlowType = ext.DefaultFlowType
	case FieldDefaultTiedStatus:
		a.DefaultTiedStatus = ext.DefaultTiedStatus
	case FieldCollaborationType:
		a.CollaborationType = ext.CollaborationType
	}
}

func copyDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := *t
	return &d
}

// ToCanonical converts the locally stored record plus its loaded collections
// into the canonical shape used for comparison.
func (a *AidActivity) ToCanonical(sectors []*SectorAllocation, orgs []*ParticipatingOrganization, txns []*ActivityTransaction) *CanonicalActivity {
	c := &CanonicalActivity{
		Identifier:         a.IatiIdentifier,
		Title:              a.Title,
		Description:        a.Description,
		Status:             ActivityStatus(a.Status),
		PlannedStartDate:   copyDate(a.PlannedStartDate),
		ActualStartDate:    copyDate(a.ActualStartDate),
		PlannedEndDate:     copyDate(a.PlannedEndDate),
		ActualEndDate:      copyDate(a.ActualEndDate),
		DefaultAidType:     a.DefaultAidType,
		DefaultFinanceType: a.DefaultFinanceType,
		DefaultFlowType:    a.DefaultFlowType,
		DefaultTiedStatus:  a.DefaultTiedStatus,
		CollaborationType:  a.CollaborationType,
		Sectors:            []CanonicalSector{},
		ParticipatingOrgs:  []CanonicalParticipatingOrg{},
		Transactions:       []CanonicalTransaction{},
	}
	for _, s := range sectors {
		c.Sectors = append(c.Sectors, CanonicalSector{
			Vocabulary: s.Vocabulary,
			Code:       s.Code,
			Name:       s.Name,
			Percentage: s.Percentage,
		})
	}
	for _, o := range orgs {
		c.ParticipatingOrgs = append(c.ParticipatingOrgs, CanonicalParticipatingOrg{
			Ref:      o.Ref,
			Name:     o.Name,
			Role:     OrganizationRole(o.Role),
			TypeCode: o.TypeCode,
		})
	}
	for _, t := range txns {
		date := t.TransactionDate
		c.Transactions = append(c.Transactions, CanonicalTransaction{
			Type:                t.Type,
			Date:                &date,
			Value:               t.Value,
			Currency:            t.Currency,
			ProviderRef:         t.ProviderRef,
			ProviderName:        t.ProviderName,
			ReceiverRef:         t.ReceiverRef,
			ReceiverName:        t.ReceiverName,
			AidType:             t.AidType,
			FinanceType:         t.FinanceType,
			FlowType:            t.FlowType,
			TiedStatus:          t.TiedStatus,
			DisbursementChannel: t.DisbursementChannel,
			Description:         t.Description,
		})
	}
	return c
}

// LoadActivityCollections fetches the three owned collections in one place so
// compare and import see a consistent snapshot.
func LoadActivityCollections(tx *gorm.DB, activityId int) ([]*SectorAllocation, []*ParticipatingOrganization, []*ActivityTransaction, error) {
	var sectors []*SectorAllocation
	if err := tx.Where("activity_id = ?", activityId).Order("sort_order, id").Find(&sectors).Error; err != nil {
		return nil, nil, nil, err
	}
	var orgs []*ParticipatingOrganization
	if err := tx.Where("activity_id = ?", activityId).Order("id").Find(&orgs).Error; err != nil {
		return nil, nil, nil, err
	}
	var txns []*ActivityTransaction
	if err := tx.Where("activity_id = ?", activityId).Order("transaction_date, id").Find(&txns).Error; err != nil {
		return nil, nil, nil, err
	}
	return sectors, orgs, txns, nil
}
