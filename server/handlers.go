package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with the API's uniform error envelope.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{
		"detail":      detail,
		"status_code": status,
	})
}

func (a *App) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sale Tracker API",
		"version": "1.0.0",
		"health":  "/health",
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sale-tracker-api",
	})
}

func (a *App) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"userId":      principal.UserID,
		"userDetails": principal.UserDetails,
		"provider":    principal.IdentityProvider,
	})
}

func (a *App) handleListSales(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	sales, err := a.Store.List(r.Context(), userID)
	if err != nil {
		a.Logger.Error("list sales failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sales")
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *App) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var payload SaleCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := a.now().UTC().Format(time.RFC3339)
	sale := SaleItem{
		ID:           uuid.NewString(),
		UserID:       UserIDFromContext(r.Context()),
		ProductName:  payload.ProductName,
		Amount:       payload.Amount,
		SaleDate:     payload.SaleDate,
		CustomerName: payload.CustomerName,
		Platform:     payload.Platform,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.Store.Create(r.Context(), sale); err != nil {
		a.Logger.Error("create sale failed", "user_id", sale.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create sale")
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *App) handleGetSale(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	saleID := chi.URLParam(r, "id")

	sale, err := a.Store.Get(r.Context(), userID, saleID)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			writeError(w, http.StatusNotFound, "Sale not found")
			return
		}
		a.Logger.Error("get sale failed", "user_id", userID, "sale_id", saleID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sale")
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *App) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	saleID := chi.URLParam(r, "id")

	var update SaleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := update.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sale, err := a.Store.Get(r.Context(), userID, saleID)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			writeError(w, http.StatusNotFound, "Sale not found")
			return
		}
		a.Logger.Error("load sale for update failed", "user_id", userID, "sale_id", saleID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update sale")
		return
	}

	update.apply(&sale)
	sale.UpdatedAt = a.now().UTC().Format(time.RFC3339)

	if err := a.Store.Update(r.Context(), sale); err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			writeError(w, http.StatusNotFound, "Sale not found")
			return
		}
		a.Logger.Error("update sale failed", "user_id", userID, "sale_id", saleID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update sale")
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *App) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	saleID := chi.URLParam(r, "id")

	if err := a.Store.Delete(r.Context(), userID, saleID); err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			writeError(w, http.StatusNotFound, "Sale not found")
			return
		}
		a.Logger.Error("delete sale failed", "user_id", userID, "sale_id", saleID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete sale")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	sales, err := a.Store.List(r.Context(), userID)
	if err != nil {
		a.Logger.Error("dashboard stats failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve dashboard stats")
		return
	}
	writeJSON(w, http.StatusOK, computeStats(sales, a.now()))
}

func (a *App) handleRecentSales(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	userID := UserIDFromContext(r.Context())
	sales, err := a.Store.List(r.Context(), userID)
	if err != nil {
		a.Logger.Error("recent sales failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve recent sales")
		return
	}
	writeJSON(w, http.StatusOK, recentSales(sales, limit))
}

func (a *App) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	sales, err := a.Store.List(r.Context(), userID)
	if err != nil {
		a.Logger.Error("dashboard data failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve dashboard data")
		return
	}
	writeJSON(w, http.StatusOK, DashboardData{
		Stats:       computeStats(sales, a.now()),
		RecentSales: recentSales(sales, defaultRecentLimit),
	})
}

// computeStats derives the dashboard aggregates from a user's sales. The
// "this month" bucket matches on the YYYY-MM prefix of the sale date.
func computeStats(sales []SaleItem, now time.Time) DashboardStats {
	stats := DashboardStats{}
	monthPrefix := now.UTC().Format("2006-01")
	for _, sale := range sales {
		stats.TotalSales += sale.Amount
		stats.TotalItems++
		if len(sale.SaleDate) >= len(monthPrefix) && sale.SaleDate[:len(monthPrefix)] == monthPrefix {
			stats.ThisMonth += sale.Amount
		}
	}
	if stats.TotalItems > 0 {
		stats.AvgPrice = stats.TotalSales / float64(stats.TotalItems)
	}
	return stats
}

// recentSales trims sorted sales to the recent-sale shape.
func recentSales(sales []SaleItem, limit int) []RecentSale {
	if limit > len(sales) {
		limit = len(sales)
	}
	out := make([]RecentSale, 0, limit)
	for _, sale := range sales[:limit] {
		out = append(out, RecentSale{
			ID:           sale.ID,
			ProductName:  sale.ProductName,
			Amount:       sale.Amount,
			SaleDate:     sale.SaleDate,
			Platform:     sale.Platform,
			CustomerName: sale.CustomerName,
		})
	}
	return out
}
