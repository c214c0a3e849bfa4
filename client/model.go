package client

// SaleItem is a complete sale record as returned by the backend.
type SaleItem struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	ProductName  string  `json:"productName"`
	Amount       float64 `json:"amount"`
	SaleDate     string  `json:"saleDate"`
	CustomerName string  `json:"customerName,omitempty"`
	Platform     string  `json:"platform"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// SaleCreate is the payload for creating a sale.
type SaleCreate struct {
	ProductName  string  `json:"productName"`
	Amount       float64 `json:"amount"`
	SaleDate     string  `json:"saleDate"`
	CustomerName string  `json:"customerName,omitempty"`
	Platform     string  `json:"platform"`
}

// SaleUpdate is a partial update; nil fields are left untouched.
type SaleUpdate struct {
	ProductName  *string  `json:"productName,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	SaleDate     *string  `json:"saleDate,omitempty"`
	CustomerName *string  `json:"customerName,omitempty"`
	Platform     *string  `json:"platform,omitempty"`
}

// DashboardStats are the headline aggregates for the dashboard.
type DashboardStats struct {
	TotalSales float64 `json:"totalSales"`
	TotalItems int     `json:"totalItems"`
	ThisMonth  float64 `json:"thisMonth"`
	AvgPrice   float64 `json:"avgPrice"`
}

// RecentSale is the trimmed sale shape used in the recent-sales list.
type RecentSale struct {
	ID           string  `json:"id"`
	ProductName  string  `json:"productName"`
	Amount       float64 `json:"amount"`
	SaleDate     string  `json:"saleDate"`
	Platform     string  `json:"platform"`
	CustomerName string  `json:"customerName,omitempty"`
}

// DashboardData bundles stats with the recent sales list.
type DashboardData struct {
	Stats       DashboardStats `json:"stats"`
	RecentSales []RecentSale   `json:"recentSales"`
}

// UserInfo mirrors the backend's current-user response.
type UserInfo struct {
	UserID      string `json:"userId"`
	UserDetails string `json:"userDetails"`
	Provider    string `json:"provider"`
}
