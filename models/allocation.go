package models

import (
	"fmt"
	"sort"

	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/shopspring/decimal"
)

// AllocationLine is one (code, percentage) entry in a set that must sum to 100%.
// AmountMinor is only populated when a total monetary amount is attached to the set.
type AllocationLine struct {
	Vocabulary  string          `json:"vocabulary"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Percentage  decimal.Decimal `json:"percentage"`
	AmountMinor *int64          `json:"amount_minor,omitempty"`
}

type AllocationSet struct {
	OwnerId          int              `json:"owner_id"`
	OwnerType        string           `json:"owner_type"`
	TotalAmountMinor *int64           `json:"total_amount_minor,omitempty"`
	Lines            []AllocationLine `json:"lines"`
}

var allocationTolerance = decimal.NewFromFloat(0.01)
var hundred = decimal.NewFromInt(100)

// ValidateAllocationLines enforces all three rules together:
// percentage in (0, 100], no duplicate (vocabulary, code), sum == 100 ±0.01.
// Returns *utils.AllocationValidationError listing every violation.
func ValidateAllocationLines(lines []AllocationLine) error {
	var problems []string

	seen := make(map[string]bool, len(lines))
	sum := decimal.Zero
	for i, line := range lines {
		if !line.Percentage.IsPositive() || line.Percentage.GreaterThan(hundred) {
			problems = append(problems, fmt.Sprintf("line %d (%s): percentage %s out of range (0, 100]", i+1, line.Code, line.Percentage))
		}
		key := line.Vocabulary + ":" + line.Code
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate sector code %s in vocabulary %q", line.Code, line.Vocabulary))
		}
		seen[key] = true
		sum = sum.Add(line.Percentage)
	}
	if len(lines) > 0 && sum.Sub(hundred).Abs().GreaterThan(allocationTolerance) {
		problems = append(problems, fmt.Sprintf("percentages sum to %s, expected 100 ±0.01", sum))
	}

	if len(problems) > 0 {
		return &utils.AllocationValidationError{Problems: problems}
	}
	return nil
}

// ReconcileAllocationAmounts distributes totalMinor across the lines so the
// line amounts sum to the total exactly. Each line starts from the floor of
// its exact share; the residual minor units go one apiece to the lines with
// the largest fractional remainder, ties broken by list order. No line ever
// receives more than one extra unit.
//
// Shares are taken against the actual percentage sum, not a nominal 100: the
// validator admits sums within ±0.01 of 100, and dividing by 100 there would
// leave a residual outside [0, n) and break exactness.
func ReconcileAllocationAmounts(lines []AllocationLine, totalMinor int64) []AllocationLine {
	out := make([]AllocationLine, len(lines))
	copy(out, lines)
	if len(out) == 0 {
		return out
	}

	pctSum := decimal.Zero
	for _, line := range out {
		pctSum = pctSum.Add(line.Percentage)
	}
	if !pctSum.IsPositive() {
		return out
	}

	total := decimal.NewFromInt(totalMinor)
	floors := make([]int64, len(out))
	remainders := make([]decimal.Decimal, len(out))

	var floorSum int64
	for i, line := range out {
		exact := total.Mul(line.Percentage).Div(pctSum)
		floor := exact.Floor()
		floors[i] = floor.IntPart()
		remainders[i] = exact.Sub(floor)
		floorSum += floors[i]
	}

	residual := totalMinor - floorSum

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})

	for k := int64(0); k < residual && int(k) < len(order); k++ {
		floors[order[k]]++
	}

	for i := range out {
		amount := floors[i]
		out[i].AmountMinor = &amount
	}
	return out
}

// ValidateAllocationSet validates the lines and, when a total is attached,
// returns the set with reconciled amounts.
func ValidateAllocationSet(set *AllocationSet) (*AllocationSet, error) {
	if err := ValidateAllocationLines(set.Lines); err != nil {
		return nil, err
	}
	if set.TotalAmountMinor != nil {
		reconciled := *set
		reconciled.Lines = ReconcileAllocationAmounts(set.Lines, *set.TotalAmountMinor)
		return &reconciled, nil
	}
	return set, nil
}
