package core

// GroupTotal is an amount aggregated under a named group (category, person, month).
type GroupTotal struct {
	ID     *int64
	Name   string
	Color  string
	Amount Money
	Count  int
}

// MonthReport summarizes the ledger for one period.
type MonthReport struct {
	Period     Period
	Total      Money
	Fixed      Money
	Variable   Money
	ByCategory []GroupTotal
	ByPerson   []GroupTotal
}

// YearReport holds twelve monthly ledger totals.
type YearReport struct {
	Year   int
	Total  Money
	Months []GroupTotal
}
