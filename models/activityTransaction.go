package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ActivityTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ActivityId      int             `gorm:"index;not null" json:"activity_id"`
	Type            string          `gorm:"size:10;not null" json:"type"`
	TransactionDate time.Time       `gorm:"index;not null" json:"transaction_date"`
	Value           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"value"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`

	ProviderRef         string `gorm:"size:128" json:"provider_ref"`
	ProviderName        string `gorm:"size:255" json:"provider_name"`
	ReceiverRef         string `gorm:"size:128" json:"receiver_ref"`
	ReceiverName        string `gorm:"size:255" json:"receiver_name"`
	AidType             string `gorm:"size:10" json:"aid_type"`
	FinanceType         string `gorm:"size:10" json:"finance_type"`
	FlowType            string `gorm:"size:10" json:"flow_type"`
	TiedStatus          string `gorm:"size:10" json:"tied_status"`
	DisbursementChannel string `gorm:"size:10" json:"disbursement_channel"`
	Description         string `gorm:"type:text" json:"description"`

	// Filled best-effort by the currency converter; null when conversion is
	// unavailable. Never blocks an import.
	ValueUSD         *decimal.Decimal `gorm:"type:decimal(20,2)" json:"value_usd"`
	ExchangeRateUsed *decimal.Decimal `gorm:"type:decimal(20,8)" json:"exchange_rate_used"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TransactionFingerprint identifies a transaction by (type, date, value,
// currency) only. Two genuinely distinct transactions sharing all four collide
// and the second is dropped on import; known limitation, kept deliberately.
func TransactionFingerprint(typeCode string, date time.Time, value decimal.Decimal, currency string) string {
	return strings.Join([]string{
		typeCode,
		date.Format("2006-01-02"),
		value.StringFixed(4),
		strings.ToUpper(currency),
	}, "|")
}

func (t *ActivityTransaction) Fingerprint() string {
	return TransactionFingerprint(t.Type, t.TransactionDate, t.Value, t.Currency)
}

// MissingTransactions returns the external transactions whose fingerprint is
// not present in existing. Import is strictly additive: re-importing the same
// snapshot selects nothing the second time.
func MissingTransactions(existing []*ActivityTransaction, incoming []CanonicalTransaction) []CanonicalTransaction {
	present := make(map[string]bool, len(existing))
	for _, t := range existing {
		present[t.Fingerprint()] = true
	}

	var missing []CanonicalTransaction
	for _, ext := range incoming {
		if ext.Date == nil {
			continue
		}
		fp := TransactionFingerprint(ext.Type, *ext.Date, ext.Value, ext.Currency)
		if present[fp] {
			continue
		}
		present[fp] = true
		missing = append(missing, ext)
	}
	return missing
}

// InsertMissingTransactions writes the additive set inside the import
// transaction and reports how many rows were created.
func InsertMissingTransactions(tx *gorm.DB, activityId int, incoming []CanonicalTransaction) (int, error) {
	var existing []*ActivityTransaction
	if err := tx.Where("activity_id = ?", activityId).Find(&existing).Error; err != nil {
		return 0, err
	}

	missing := MissingTransactions(existing, incoming)
	for _, ext := range missing {
		row := ActivityTransaction{
			ActivityId:          activityId,
			Type:                ext.Type,
			TransactionDate:     *ext.Date,
			Value:               ext.Value,
			Currency:            strings.ToUpper(ext.Currency),
			ProviderRef:         ext.ProviderRef,
			ProviderName:        ext.ProviderName,
			ReceiverRef:         ext.ReceiverRef,
			ReceiverName:        ext.ReceiverName,
			AidType:             ext.AidType,
			FinanceType:         ext.FinanceType,
			FlowType:            ext.FlowType,
			TiedStatus:          ext.TiedStatus,
			DisbursementChannel: ext.DisbursementChannel,
			Description:         ext.Description,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, err
		}
	}
	return len(missing), nil
}
