package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drink-exchange/internal/pricing"
	"drink-exchange/internal/storage"
)

// Server is the thin HTTP surface over the pricing engine. It decodes
// requests into engine calls and maps engine errors onto status codes; it
// holds no pricing logic of its own.
type Server struct {
	engine *pricing.Engine
	events storage.EventStore
	ws     http.Handler
	logger zerolog.Logger
}

// NewServer wires the HTTP handlers. ws may be nil when the broadcast
// endpoint is not exposed.
func NewServer(engine *pricing.Engine, events storage.EventStore, ws http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		engine: engine,
		events: events,
		ws:     ws,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/pairs/{id}/buy", s.handleBuy)
	mux.HandleFunc("GET /api/pairs", s.handleListPairs)
	mux.HandleFunc("GET /api/prices/{id}", s.handleLatest)
	mux.HandleFunc("POST /api/prices/query", s.handleQuery)
	mux.HandleFunc("GET /api/market", s.handleMarket)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("DELETE /api/events/current", s.handleCloseEvent)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}

	return mux
}

type snapshotJSON struct {
	ID            int64           `json:"id"`
	PairID        int64           `json:"pair_id"`
	PriceDrinkOne decimal.Decimal `json:"price_drink_one"`
	PriceDrinkTwo decimal.Decimal `json:"price_drink_two"`
	CreatedAt     time.Time       `json:"created_at"`
}

type pairJSON struct {
	ID         int64           `json:"id"`
	EventID    int64           `json:"event_id"`
	DrinkOneID int64           `json:"drink_one_id"`
	DrinkTwoID int64           `json:"drink_two_id"`
	IncOne     decimal.Decimal `json:"inc_one"`
	SubOne     decimal.Decimal `json:"sub_one"`
	FloorOne   decimal.Decimal `json:"floor_one"`
	IncTwo     decimal.Decimal `json:"inc_two"`
	SubTwo     decimal.Decimal `json:"sub_two"`
	FloorTwo   decimal.Decimal `json:"floor_two"`
}

type eventJSON struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

type errorJSON struct {
	Message string `json:"message"`
}

type buyRequest struct {
	Drink string `json:"drink"`
}

type queryRequest struct {
	IDs  []int64 `json:"ids"`
	Mode string  `json:"mode"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	pairID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var traded pricing.TradedDrink
	switch req.Drink {
	case "one":
		traded = pricing.DrinkOne
	case "two":
		traded = pricing.DrinkTwo
	default:
		writeError(w, http.StatusBadRequest, `drink must be "one" or "two"`)
		return
	}

	snap, err := s.engine.Buy(r.Context(), pairID, traded)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotJSON(snap))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	pairID, ok := pathID(w, r)
	if !ok {
		return
	}

	snap, err := s.engine.Latest(r.Context(), pairID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotJSON(snap))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no ids provided")
		return
	}

	mode := storage.OnePerPair
	switch req.Mode {
	case "", "one_per_pair":
	case "edge_generation":
		mode = storage.AllAtEdgeGeneration
	default:
		writeError(w, http.StatusBadRequest, `mode must be "one_per_pair" or "edge_generation"`)
		return
	}

	snaps, err := s.engine.LatestMany(r.Context(), req.IDs, mode)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotListJSON(snaps))
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.engine.MarketSnapshot(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotListJSON(snaps))
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.engine.Pairs(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	out := make([]pairJSON, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, pairJSON{
			ID:         p.ID,
			EventID:    p.EventID,
			DrinkOneID: p.DrinkOneID,
			DrinkTwoID: p.DrinkTwoID,
			IncOne:     p.IncOne,
			SubOne:     p.SubOne,
			FloorOne:   p.FloorOne,
			IncTwo:     p.IncTwo,
			SubTwo:     p.SubTwo,
			FloorTwo:   p.FloorTwo,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.events.Create(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrActiveEventExists) {
			writeError(w, http.StatusConflict, "an active event already exists")
			return
		}
		s.logger.Error().Err(err).Msg("event creation failed")
		writeError(w, http.StatusInternalServerError, "event creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, eventJSON{ID: ev.ID, CreatedAt: ev.CreatedAt, Active: ev.Active})
}

func (s *Server) handleCloseEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.events.Current(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusConflict, "no active event at the moment")
			return
		}
		s.logger.Error().Err(err).Msg("resolve current event failed")
		writeError(w, http.StatusInternalServerError, "resolve current event failed")
		return
	}

	if err := s.events.Deactivate(r.Context(), ev.ID); err != nil {
		s.logger.Error().Err(err).Int64("event_id", ev.ID).Msg("event deactivation failed")
		writeError(w, http.StatusInternalServerError, "event deactivation failed")
		return
	}
	writeJSON(w, http.StatusOK, eventJSON{ID: ev.ID, CreatedAt: ev.CreatedAt, Active: false})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrNoActiveEvent):
		writeError(w, http.StatusConflict, "no active event at the moment")
	case errors.Is(err, pricing.ErrPairNotFound):
		writeError(w, http.StatusNotFound, "pair not found")
	default:
		s.logger.Error().Err(err).Msg("pricing operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pair id")
		return 0, false
	}
	return id, true
}

func toSnapshotJSON(snap storage.PriceSnapshot) snapshotJSON {
	return snapshotJSON{
		ID:            snap.ID,
		PairID:        snap.PairID,
		PriceDrinkOne: snap.PriceDrinkOne,
		PriceDrinkTwo: snap.PriceDrinkTwo,
		CreatedAt:     snap.CreatedAt,
	}
}

func toSnapshotListJSON(snaps []storage.PriceSnapshot) []snapshotJSON {
	out := make([]snapshotJSON, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotJSON(snap))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorJSON{Message: message})
}
