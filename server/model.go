package server

import (
	"errors"
	"fmt"
)

// Platform is the marketplace a sale happened on.
type Platform string

const (
	PlatformEbay   Platform = "ebay"
	PlatformGoat   Platform = "goat"
	PlatformStockX Platform = "stockx"
	PlatformManual Platform = "manual"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformEbay, PlatformGoat, PlatformStockX, PlatformManual:
		return true
	}
	return false
}

// SaleItem is a complete sale record. UserID partitions records per owner.
type SaleItem struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	ProductName  string   `json:"productName"`
	Amount       float64  `json:"amount"`
	SaleDate     string   `json:"saleDate"`
	CustomerName string   `json:"customerName,omitempty"`
	Platform     Platform `json:"platform"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// SaleCreate is the client payload for a new sale, without system fields.
type SaleCreate struct {
	ProductName  string   `json:"productName"`
	Amount       float64  `json:"amount"`
	SaleDate     string   `json:"saleDate"`
	CustomerName string   `json:"customerName,omitempty"`
	Platform     Platform `json:"platform"`
}

// Validate enforces the field constraints on a create payload.
func (s SaleCreate) Validate() error {
	if s.ProductName == "" {
		return errors.New("productName is required")
	}
	if len(s.ProductName) > 200 {
		return errors.New("productName must be at most 200 characters")
	}
	if s.Amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if s.SaleDate == "" {
		return errors.New("saleDate is required")
	}
	if len(s.CustomerName) > 100 {
		return errors.New("customerName must be at most 100 characters")
	}
	if !s.Platform.Valid() {
		return fmt.Errorf("platform %q is not supported", s.Platform)
	}
	return nil
}

// SaleUpdate is a partial update; nil fields are left unchanged.
type SaleUpdate struct {
	ProductName  *string   `json:"productName,omitempty"`
	Amount       *float64  `json:"amount,omitempty"`
	SaleDate     *string   `json:"saleDate,omitempty"`
	CustomerName *string   `json:"customerName,omitempty"`
	Platform     *Platform `json:"platform,omitempty"`
}

// Validate checks only the fields present in the update.
func (u SaleUpdate) Validate() error {
	if u.ProductName != nil {
		if *u.ProductName == "" {
			return errors.New("productName must not be empty")
		}
		if len(*u.ProductName) > 200 {
			return errors.New("productName must be at most 200 characters")
		}
	}
	if u.Amount != nil && *u.Amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if u.SaleDate != nil && *u.SaleDate == "" {
		return errors.New("saleDate must not be empty")
	}
	if u.CustomerName != nil && len(*u.CustomerName) > 100 {
		return errors.New("customerName must be at most 100 characters")
	}
	if u.Platform != nil && !u.Platform.Valid() {
		return fmt.Errorf("platform %q is not supported", *u.Platform)
	}
	return nil
}

// apply merges the update into an existing sale.
func (u SaleUpdate) apply(sale *SaleItem) {
	if u.ProductName != nil {
		sale.ProductName = *u.ProductName
	}
	if u.Amount != nil {
		sale.Amount = *u.Amount
	}
	if u.SaleDate != nil {
		sale.SaleDate = *u.SaleDate
	}
	if u.CustomerName != nil {
		sale.CustomerName = *u.CustomerName
	}
	if u.Platform != nil {
		sale.Platform = *u.Platform
	}
}

// DashboardStats are the aggregates shown on the dashboard.
type DashboardStats struct {
	TotalSales float64 `json:"totalSales"`
	TotalItems int     `json:"totalItems"`
	ThisMonth  float64 `json:"thisMonth"`
	AvgPrice   float64 `json:"avgPrice"`
}

// RecentSale is the trimmed shape for the recent-sales list.
type RecentSale struct {
	ID           string   `json:"id"`
	ProductName  string   `json:"productName"`
	Amount       float64  `json:"amount"`
	SaleDate     string   `json:"saleDate"`
	Platform     Platform `json:"platform"`
	CustomerName string   `json:"customerName,omitempty"`
}

// DashboardData bundles stats and recent sales for the combined endpoint.
type DashboardData struct {
	Stats       DashboardStats `json:"stats"`
	RecentSales []RecentSale   `json:"recentSales"`
}
