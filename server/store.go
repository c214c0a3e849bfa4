package server

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrSaleNotFound is returned for lookups of absent or foreign sales.
var ErrSaleNotFound = errors.New("sale not found")

// SaleStore persists sale records partitioned by user.
type SaleStore interface {
	Create(ctx context.Context, sale SaleItem) error
	Get(ctx context.Context, userID, saleID string) (SaleItem, error)
	// List returns every sale for userID ordered by sale date, newest first.
	List(ctx context.Context, userID string) ([]SaleItem, error)
	Update(ctx context.Context, sale SaleItem) error
	Delete(ctx context.Context, userID, saleID string) error
}

// MemoryStore keeps sales in process memory. The default for development and
// tests; records do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	sales map[string]map[string]SaleItem
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sales: make(map[string]map[string]SaleItem)}
}

func (s *MemoryStore) Create(ctx context.Context, sale SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.sales[sale.UserID]
	if !ok {
		byID = make(map[string]SaleItem)
		s.sales[sale.UserID] = byID
	}
	byID[sale.ID] = sale
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID, saleID string) (SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[userID][saleID]
	if !ok {
		return SaleItem{}, ErrSaleNotFound
	}
	return sale, nil
}

func (s *MemoryStore) List(ctx context.Context, userID string) ([]SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.sales[userID]
	out := make([]SaleItem, 0, len(byID))
	for _, sale := range byID {
		out = append(out, sale)
	}
	sortSales(out)
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, sale SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.sales[sale.UserID]
	if !ok {
		return ErrSaleNotFound
	}
	if _, ok := byID[sale.ID]; !ok {
		return ErrSaleNotFound
	}
	byID[sale.ID] = sale
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.sales[userID]
	if !ok {
		return ErrSaleNotFound
	}
	if _, ok := byID[saleID]; !ok {
		return ErrSaleNotFound
	}
	delete(byID, saleID)
	return nil
}

// sortSales orders by sale date descending. ISO-8601 timestamps sort
// lexicographically; created-at breaks ties so ordering stays stable.
func sortSales(sales []SaleItem) {
	sort.SliceStable(sales, func(i, j int) bool {
		if sales[i].SaleDate != sales[j].SaleDate {
			return sales[i].SaleDate > sales[j].SaleDate
		}
		return sales[i].CreatedAt > sales[j].CreatedAt
	})
}
