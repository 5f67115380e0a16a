package iati

import (
	"strings"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/shopspring/decimal"
)

// Activity-date type codes.
var dateFieldByType = map[string]string{
	"1": models.FieldPlannedStart,
	"2": models.FieldActualStart,
	"3": models.FieldPlannedEnd,
	"4": models.FieldActualEnd,
}

// Normalize converts a decoded external activity payload into the canonical
// shape. Tolerant by design: missing optional fields normalize to zero values
// and unknown codes stay empty. The only fatal condition is a payload with no
// extractable identifier.
func Normalize(payload map[string]interface{}) (*models.CanonicalActivity, error) {
	if payload == nil {
		return nil, &utils.NormalizationError{Reason: "payload is empty"}
	}

	identifier := stringValue(pick(payload, "iati-identifier", "iati_identifier", "iatiIdentifier"))
	if identifier == "" {
		return nil, &utils.NormalizationError{Reason: "payload has no activity identifier"}
	}

	activity := &models.CanonicalActivity{
		Identifier:  identifier,
		Title:       narrativeText(pick(payload, "title")),
		Description: narrativeText(pick(payload, "description")),
		Status:      models.ParseActivityStatusCode(codeValue(pick(payload, "activity-status", "activity_status", "activityStatus"))),

		DefaultAidType:     codeValue(pick(payload, "default-aid-type", "default_aid_type", "defaultAidType")),
		DefaultFinanceType: codeValue(pick(payload, "default-finance-type", "default_finance_type", "defaultFinanceType")),
		DefaultFlowType:    codeValue(pick(payload, "default-flow-type", "default_flow_type", "defaultFlowType")),
		DefaultTiedStatus:  codeValue(pick(payload, "default-tied-status", "default_tied_status", "defaultTiedStatus")),
		CollaborationType:  codeValue(pick(payload, "collaboration-type", "collaboration_type", "collaborationType")),
	}

	normalizeDates(activity, pick(payload, "activity-date", "activity_date", "activityDate"))
	activity.Sectors = normalizeSectors(pick(payload, "sector", "sectors"))
	activity.ParticipatingOrgs = normalizeParticipatingOrgs(pick(payload, "participating-org", "participating_org", "participatingOrg"))
	activity.Transactions = normalizeTransactions(pick(payload, "transaction", "transactions"))

	return activity, nil
}

func normalizeDates(activity *models.CanonicalActivity, raw interface{}) {
	for _, item := range asList(raw) {
		m := asMap(item)
		if m == nil {
			continue
		}
		field := dateFieldByType[attrString(m, "@type", "type")]
		parsed := parseDate(attrString(m, "@iso-date", "iso-date", "iso_date", "isoDate", "date"))
		if field == "" || parsed == nil {
			continue
		}
		switch field {
		case models.FieldPlannedStart:
			activity.PlannedStartDate = parsed
		case models.FieldActualStart:
			activity.ActualStartDate = parsed
		case models.FieldPlannedEnd:
			activity.PlannedEndDate = parsed
		case models.FieldActualEnd:
			activity.ActualEndDate = parsed
		}
	}
}

func normalizeSectors(raw interface{}) []models.CanonicalSector {
	var sectors []models.CanonicalSector
	for _, item := range asList(raw) {
		m := asMap(item)
		if m == nil {
			continue
		}
		code := attrString(m, "@code", "code")
		if code == "" {
			continue
		}
		sectors = append(sectors, models.CanonicalSector{
			Vocabulary: attrString(m, "@vocabulary", "vocabulary"),
			Code:       code,
			Name:       narrativeText(pick(m, "narrative", "name")),
			Percentage: parseDecimal(pick(m, "@percentage", "percentage")),
		})
	}
	return sectors
}

func normalizeParticipatingOrgs(raw interface{}) []models.CanonicalParticipatingOrg {
	var orgs []models.CanonicalParticipatingOrg
	for _, item := range asList(raw) {
		m := asMap(item)
		if m == nil {
			continue
		}
		org := models.CanonicalParticipatingOrg{
			Ref:      attrString(m, "@ref", "ref"),
			Name:     narrativeText(pick(m, "narrative", "name")),
			Role:     models.ParseOrganizationRoleCode(attrString(m, "@role", "role")),
			TypeCode: attrString(m, "@type", "type"),
		}
		if org.Ref == "" && org.Name == "" {
			continue
		}
		orgs = append(orgs, org)
	}
	return orgs
}

func normalizeTransactions(raw interface{}) []models.CanonicalTransaction {
	var transactions []models.CanonicalTransaction
	for _, item := range asList(raw) {
		m := asMap(item)
		if m == nil {
			continue
		}
		txn := models.CanonicalTransaction{
			Type:                codeValue(pick(m, "transaction-type", "transaction_type", "transactionType", "type")),
			Date:                parseDate(transactionDateString(m)),
			Description:         narrativeText(pick(m, "description")),
			AidType:             codeValue(pick(m, "aid-type", "aid_type", "aidType")),
			FinanceType:         codeValue(pick(m, "finance-type", "finance_type", "financeType")),
			FlowType:            codeValue(pick(m, "flow-type", "flow_type", "flowType")),
			TiedStatus:          codeValue(pick(m, "tied-status", "tied_status", "tiedStatus")),
			DisbursementChannel: codeValue(pick(m, "disbursement-channel", "disbursement_channel", "disbursementChannel")),
		}

		txn.Value, txn.Currency = transactionValue(m)
		txn.ProviderRef, txn.ProviderName = orgRefAndName(pick(m, "provider-org", "provider_org", "providerOrg"))
		txn.ReceiverRef, txn.ReceiverName = orgRefAndName(pick(m, "receiver-org", "receiver_org", "receiverOrg"))

		transactions = append(transactions, txn)
	}
	return transactions
}

// transactionValue handles the value element's two shapes: a bare number, or
// an object carrying the amount in a text member and the currency as an
// attribute.
func transactionValue(m map[string]interface{}) (decimal.Decimal, string) {
	raw := pick(m, "value")
	currency := attrString(m, "@currency", "currency")

	if vm := asMap(raw); vm != nil {
		if c := attrString(vm, "@currency", "currency"); c != "" {
			currency = c
		}
		return parseDecimal(pick(vm, "text", "#text", "$", "@value", "amount")), strings.ToUpper(currency)
	}
	return parseDecimal(raw), strings.ToUpper(currency)
}

func transactionDateString(m map[string]interface{}) string {
	raw := pick(m, "transaction-date", "transaction_date", "transactionDate", "date")
	if dm := asMap(raw); dm != nil {
		return attrString(dm, "@iso-date", "iso-date", "iso_date", "isoDate", "date")
	}
	return stringValue(raw)
}

func orgRefAndName(raw interface{}) (string, string) {
	if s := stringValue(raw); s != "" {
		return "", s
	}
	m := asMap(raw)
	if m == nil {
		return "", ""
	}
	return attrString(m, "@ref", "ref"), narrativeText(pick(m, "narrative", "name"))
}

// parseDate accepts ISO dates, optionally with a trailing time component.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func parseDecimal(v interface{}) decimal.Decimal {
	s := stringValue(v)
	if s == "" {
		return decimal.Zero
	}
	d, err := utils.ConvertToDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
