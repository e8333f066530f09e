package payment

// Plan тариф премиум-подписки.
type Plan struct {
	ID           string `json:"id"`
	DurationDays int    `json:"durationDays"`
	Price        int    `json:"price"` // Цена в рублях
	Description  string `json:"description"`
}

const sixMonthsDays = 180

var plans = map[string]Plan{
	"1month": {
		ID:           "1month",
		DurationDays: 30,
		Price:        299,
		Description:  "Harmony Premium на 1 месяц",
	},
	"6months": {
		ID:           "6months",
		DurationDays: sixMonthsDays,
		Price:        1490,
		Description:  "Harmony Premium на 6 месяцев",
	},
}

// Plans возвращает список доступных тарифов в стабильном порядке.
func Plans() []Plan {
	return []Plan{plans["1month"], plans["6months"]}
}

// PlanByID возвращает тариф по идентификатору.
func PlanByID(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}
