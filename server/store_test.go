package server

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreListOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sales := []SaleItem{
		{ID: "a", UserID: "u1", SaleDate: "2024-01-10T00:00:00Z", CreatedAt: "2024-01-10T00:00:00Z"},
		{ID: "b", UserID: "u1", SaleDate: "2024-03-01T00:00:00Z", CreatedAt: "2024-03-01T00:00:00Z"},
		{ID: "c", UserID: "u1", SaleDate: "2024-02-15T00:00:00Z", CreatedAt: "2024-02-15T00:00:00Z"},
	}
	for _, sale := range sales {
		if err := store.Create(ctx, sale); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	listed, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"b", "c", "a"}
	if len(listed) != len(want) {
		t.Fatalf("len = %d, want %d", len(listed), len(want))
	}
	for i, id := range want {
		if listed[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, listed[i].ID, id)
		}
	}
}

func TestMemoryStoreUserIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, SaleItem{ID: "s1", UserID: "alice"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Get(ctx, "bob", "s1"); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("cross-user get: err = %v, want ErrSaleNotFound", err)
	}
	if err := store.Delete(ctx, "bob", "s1"); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("cross-user delete: err = %v, want ErrSaleNotFound", err)
	}

	listed, err := store.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("bob sees %d foreign sales", len(listed))
	}
}

func TestMemoryStoreUpdateAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sale := SaleItem{ID: "s1", UserID: "u1", ProductName: "before"}
	if err := store.Create(ctx, sale); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sale.ProductName = "after"
	if err := store.Update(ctx, sale); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Get(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ProductName != "after" {
		t.Fatalf("productName = %q", got.ProductName)
	}

	if err := store.Update(ctx, SaleItem{ID: "missing", UserID: "u1"}); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("update missing: err = %v", err)
	}

	if err := store.Delete(ctx, "u1", "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "u1", "s1"); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("get after delete: err = %v", err)
	}
}
