package profit

import (
	"strings"
	"time"

	"github.com/truemargin/truemargin/internal/costmodel"
	"github.com/truemargin/truemargin/internal/shared"
)

// AmortizeExpenses totals operational expenses for the range by counting
// occurrences, not prorating by days. A monthly expense billed on the 15th
// contributes its full amount for every 15th inside the range and nothing
// otherwise. EUR expenses convert via eurRate.
func AmortizeExpenses(expenses []costmodel.OperationalExpense, rng shared.DateRange, eurRate float64) float64 {
	var total float64
	for _, expense := range expenses {
		occurrences := countOccurrences(expense, rng)
		if occurrences == 0 {
			continue
		}
		amount := expense.Amount
		if strings.EqualFold(expense.Currency, "EUR") {
			amount *= eurRate
		}
		total += amount * float64(occurrences)
	}
	return total
}

func countOccurrences(expense costmodel.OperationalExpense, rng shared.DateRange) int {
	start := shared.Midnight(expense.StartDate)

	switch expense.Type {
	case costmodel.ExpenseOneTime:
		if occurrenceCounts(start, expense, rng) {
			return 1
		}
		return 0
	case costmodel.ExpenseMonthly, costmodel.ExpenseYearly:
		// Each occurrence derives from the start date directly rather than
		// the previous occurrence, so month-length quirks cannot drift the
		// billing day.
		count := 0
		for i := 0; ; i++ {
			var occ time.Time
			if expense.Type == costmodel.ExpenseMonthly {
				occ = start.AddDate(0, i, 0)
			} else {
				occ = start.AddDate(i, 0, 0)
			}
			if occ.After(rng.To) {
				break
			}
			if expense.EndDate != nil && occ.After(shared.Midnight(*expense.EndDate)) {
				break
			}
			if occurrenceCounts(occ, expense, rng) {
				count++
			}
		}
		return count
	default:
		return 0
	}
}

func occurrenceCounts(occ time.Time, expense costmodel.OperationalExpense, rng shared.DateRange) bool {
	if occ.Before(rng.From) || occ.After(rng.To) {
		return false
	}
	if expense.EndDate != nil && occ.After(shared.Midnight(*expense.EndDate)) {
		return false
	}
	return true
}
