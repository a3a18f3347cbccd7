package domain

import "time"

// Expense es un gasto individual con su recibo opcional.
type Expense struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	UserID   string    `json:"userId"`
	Value    float64   `json:"value"`
	ImageURL string    `json:"imageUrl"`
	Dtg      time.Time `json:"dtg"`
}

// Total suma el valor de todos los gastos del snapshot.
func Total(expenses []Expense) float64 {
	var total float64
	for _, e := range expenses {
		total += e.Value
	}
	return total
}
