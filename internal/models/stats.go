package models

import "github.com/shopspring/decimal"

// MonthlySales is the order total of one calendar month
type MonthlySales struct {
	Month      string          `db:"month" json:"month"`
	TotalSales decimal.Decimal `db:"total_sales" json:"totalSales"`
}

// TopSeller is a product ranked by units sold
type TopSeller struct {
	Name      string          `db:"name" json:"name"`
	Image     *string         `db:"image" json:"image"`
	Category  string          `db:"category" json:"category"`
	Ratings   decimal.Decimal `db:"ratings" json:"ratings"`
	TotalSold int64           `db:"total_sold" json:"total_sold"`
}

// LowStock is a product close to selling out
type LowStock struct {
	Name  string `db:"name" json:"name"`
	Stock int    `db:"stock" json:"stock"`
}
