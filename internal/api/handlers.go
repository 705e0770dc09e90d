package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/chain"
	"github.com/tokenlens/transfer-indexer/internal/database"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": count,
	})
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	filter := database.TransferFilter{
		Limit: parseLimit(r.URL.Query().Get("limit")),
	}

	if v := r.URL.Query().Get("from"); v != "" {
		addr, ok := parseAddress(v)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "invalid from address")
			return
		}
		filter.From = addr
	}
	if v := r.URL.Query().Get("to"); v != "" {
		addr, ok := parseAddress(v)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "invalid to address")
			return
		}
		filter.To = addr
	}
	if v := r.URL.Query().Get("address"); v != "" {
		addr, ok := parseAddress(v)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		filter.Address = addr
	}

	transfers, err := s.store.ListTransfers(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing transfers failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"transfers": transfers,
		"count":     len(transfers),
	})
}

func (s *Server) handleAddressTransfers(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(chi.URLParam(r, "address"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	transfers, err := s.store.ListTransfers(r.Context(), database.TransferFilter{
		Address: addr,
		Limit:   parseLimit(r.URL.Query().Get("limit")),
	})
	if err != nil {
		s.logger.Error("listing address transfers failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"address":   addr,
		"transfers": transfers,
		"count":     len(transfers),
	})
}

// handleAddressBalance sums transfers in and out of the address over
// the retained window. Amounts stay big integers end to end.
func (s *Server) handleAddressBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(chi.URLParam(r, "address"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	transfers, err := s.store.ListTransfers(r.Context(), database.TransferFilter{Address: addr})
	if err != nil {
		s.logger.Error("loading address transfers failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	balance := new(big.Int)
	amount := new(big.Int)
	for i := range transfers {
		if _, ok := amount.SetString(transfers[i].Amount, 10); !ok {
			continue
		}

		if transfers[i].ToAddress == addr {
			balance.Add(balance, amount)
		}
		if transfers[i].FromAddress == addr {
			balance.Sub(balance, amount)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"address":   addr,
		"balance":   balance.String(),
		"transfers": len(transfers),
	})
}

func parseAddress(raw string) (string, bool) {
	if !common.IsHexAddress(raw) {
		return "", false
	}

	return chain.NormalizeAddress(common.HexToAddress(raw)), true
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}

	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
