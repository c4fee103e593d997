package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/camarigor/miner-profit/internal/export"
	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
	"github.com/camarigor/miner-profit/internal/storage"
)

const maxConfigBytes = 1 << 20

// ConfigPayload is the body of GET and PUT /api/config
type ConfigPayload struct {
	Miners  []mining.MinerSpec `json:"miners"`
	SavedAt *time.Time         `json:"savedAt,omitempty"`
}

// MarketResponse is a refreshed bundle with its degradation flags
type MarketResponse struct {
	market.Bundle
	Stale       bool `json:"stale"`
	Unavailable bool `json:"unavailable"`
}

// CoinsResponse describes the algorithm table
type CoinsResponse struct {
	Algorithms   []mining.Profile        `json:"algorithms"`
	BlockRewards map[mining.Coin]float64 `json:"blockRewards"`
}

// handleHealth reports liveness
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// handleGetConfig returns the stored miner list
// GET /api/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	fleet, err := s.store.Fleet(r.Context())
	if err != nil {
		s.logger.Error("failed to load miners", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload := ConfigPayload{Miners: fleet.Miners}
	if !fleet.SavedAt.IsZero() {
		payload.SavedAt = &fleet.SavedAt
	}
	s.jsonResponse(w, payload)
}

// handlePutConfig replaces the whole miner list
// PUT /api/config
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req struct {
		Miners *[]mining.MinerSpec `json:"miners"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Miners == nil {
		http.Error(w, "miners is required", http.StatusBadRequest)
		return
	}

	saved, err := s.store.SaveMiners(r.Context(), *req.Miners)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("failed to save miners", zap.Error(err))
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.logger.Info("miner config saved", zap.Int("miners", len(saved)))
	s.jsonResponse(w, ConfigPayload{Miners: saved})
}

// handleGetMarket refreshes and returns the market bundle
// GET /api/market?start=&end= or ?preset=
func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	rng, err := s.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bundle, err := s.market.Refresh(r.Context(), rng)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	s.jsonResponse(w, MarketResponse{
		Bundle:      bundle,
		Stale:       bundle.Stale(),
		Unavailable: bundle.Unavailable(),
	})
}

// handleGetCoins returns the algorithm lookup table and block rewards
// GET /api/coins
func (s *Server) handleGetCoins(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, CoinsResponse{
		Algorithms:   mining.Profiles(),
		BlockRewards: mining.BlockRewards,
	})
}

// handleGetRevenue computes daily records and totals for the stored fleet
// GET /api/revenue?start=&end= or ?preset=
func (s *Server) handleGetRevenue(w http.ResponseWriter, r *http.Request) {
	rng, err := s.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.engine.Run(r.Context(), rng)
	if err != nil {
		s.logError("revenue computation failed", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.jsonResponse(w, res)
}

// handleExport streams the computation as an xlsx workbook
// GET /api/export?start=&end= or ?preset=
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := s.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.engine.Run(r.Context(), rng)
	if err != nil {
		s.logError("export computation failed", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, res); err != nil {
		s.logger.Error("failed to write workbook", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(res.Range)+`"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("failed to send workbook", zap.Error(err))
	}
}

// parseRange reads ?preset= or an explicit ?start=&end= pair. No parameters
// means the current month.
func (s *Server) parseRange(r *http.Request) (mining.DateRange, error) {
	q := r.URL.Query()
	start, end, preset := q.Get("start"), q.Get("end"), q.Get("preset")

	if preset == mining.PresetCustom || (preset == "" && (start != "" || end != "")) {
		return mining.DateRange{Start: start, End: end}, nil
	}
	return mining.PresetRange(preset, s.now())
}

func (s *Server) logError(msg string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
}

// statusFor maps caller mistakes to 400 and everything else to 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, mining.ErrInvalidRange),
		errors.Is(err, mining.ErrInvalidDate),
		errors.Is(err, mining.ErrInvalidMiner),
		errors.Is(err, mining.ErrUnknownAlgorithm),
		errors.Is(err, storage.ErrDuplicateMinerID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// jsonResponse sends a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}
