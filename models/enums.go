package models

// Activity status, stored as the lowercase enum value. External payloads carry
// the IATI numeric code; ParseActivityStatusCode / StatusCode convert.
type ActivityStatus string

const (
	ActivityStatusPipeline       ActivityStatus = "pipeline"
	ActivityStatusImplementation ActivityStatus = "implementation"
	ActivityStatusFinalisation   ActivityStatus = "finalisation"
	ActivityStatusClosed         ActivityStatus = "closed"
	ActivityStatusCancelled      ActivityStatus = "cancelled"
	ActivityStatusSuspended      ActivityStatus = "suspended"
)

var activityStatusByCode = map[string]ActivityStatus{
	"1": ActivityStatusPipeline,
	"2": ActivityStatusImplementation,
	"3": ActivityStatusFinalisation,
	"4": ActivityStatusClosed,
	"5": ActivityStatusCancelled,
	"6": ActivityStatusSuspended,
}

var activityStatusCodes = map[ActivityStatus]string{
	ActivityStatusPipeline:       "1",
	ActivityStatusImplementation: "2",
	ActivityStatusFinalisation:   "3",
	ActivityStatusClosed:         "4",
	ActivityStatusCancelled:      "5",
	ActivityStatusSuspended:      "6",
}

// ParseActivityStatusCode returns "" for unrecognized codes; callers keep the
// field empty rather than failing normalization.
func ParseActivityStatusCode(code string) ActivityStatus {
	return activityStatusByCode[code]
}

func (s ActivityStatus) StatusCode() string {
	return activityStatusCodes[s]
}

// Participating-organization roles, stored as the lowercase enum value.
type OrganizationRole string

const (
	OrgRoleFunding      OrganizationRole = "funding"
	OrgRoleAccountable  OrganizationRole = "accountable"
	OrgRoleExtending    OrganizationRole = "extending"
	OrgRoleImplementing OrganizationRole = "implementing"
)

var orgRoleByCode = map[string]OrganizationRole{
	"1": OrgRoleFunding,
	"2": OrgRoleAccountable,
	"3": OrgRoleExtending,
	"4": OrgRoleImplementing,
}

func ParseOrganizationRoleCode(code string) OrganizationRole {
	return orgRoleByCode[code]
}

// Transaction type codes are passed through as opaque codes. The label lookup
// is display-only; an unknown code yields "" and never fails anything.
var transactionTypeLabels = map[string]string{
	"1":  "Incoming Funds",
	"2":  "Outgoing Commitment",
	"3":  "Disbursement",
	"4":  "Expenditure",
	"5":  "Interest Payment",
	"6":  "Loan Repayment",
	"7":  "Reimbursement",
	"8":  "Purchase of Equity",
	"9":  "Sale of Equity",
	"11": "Incoming Commitment",
	"12": "Outgoing Pledge",
	"13": "Incoming Pledge",
}

func TransactionTypeLabel(code string) string {
	return transactionTypeLabels[code]
}

// Sync status exposed for display. Only error and pending are stored;
// never/live/outdated are derived at read time.
type SyncStatus string

const (
	SyncStatusNever    SyncStatus = "never"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusLive     SyncStatus = "live"
	SyncStatusOutdated SyncStatus = "outdated"
	SyncStatusError    SyncStatus = "error"
)

const (
	ImportTypeManual  = "manual"
	ImportTypePartial = "partial"
	ImportTypeAuto    = "auto"
)

const (
	ImportResultSuccess = "success"
	ImportResultFailure = "failure"
)

const (
	AllocationOwnerActivity    = "activity"
	AllocationOwnerTransaction = "transaction"
)
