package house

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/StabilityNexus/hammerhouse/houseapi"
)

// Router builds the HTTP API.
func (h *House) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/events", h.handleEvents)
	r.Get("/receipt-key", h.handleReceiptKey)

	r.Route("/auctions", func(r chi.Router) {
		r.Post("/", h.handleOperation(houseapi.TypeCreate))
		r.Route("/{auctionID}", func(r chi.Router) {
			r.Get("/", h.handleGetAuction)
			r.Get("/receipts", h.handleReceipts)
			r.Post("/bid", h.handleOperation(houseapi.TypeBid))
			r.Post("/commit", h.handleOperation(houseapi.TypeCommitBid))
			r.Post("/reveal", h.handleOperation(houseapi.TypeRevealBid))
			r.Post("/claim", h.handleOperation(houseapi.TypeClaim))
			r.Post("/withdraw", h.handleOperation(houseapi.TypeWithdraw))
			r.Post("/cancel", h.handleOperation(houseapi.TypeCancel))
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func (h *House) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.clock.Now(),
	})
}

func (h *House) handleReceiptKey(w http.ResponseWriter, r *http.Request) {
	pemStr, err := h.ReceiptKeyPEM()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": pemStr})
}

func auctionIDParam(r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "auctionID")
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil
}

// handleOperation parses the request envelope, forces the operation type
// and path auction id, and submits through the shard matching the
// auction.
func (h *House) handleOperation(opType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.auth.Principal(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}

		var req houseapi.Request
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
				return
			}
		}
		req.Type = opType
		if req.RequestID == "" {
			req.RequestID = middleware.GetReqID(r.Context())
		}
		if opType != houseapi.TypeCreate {
			id, ok := auctionIDParam(r)
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed auction id"})
				return
			}
			req.AuctionID = id
		}

		resp := h.Submit(caller, req)
		status := http.StatusOK
		if !resp.Success {
			status = statusForError(resp.Error)
		}
		writeJSON(w, status, resp)
	}
}

// statusForError maps engine error codes onto HTTP statuses.
func statusForError(code string) int {
	switch code {
	case "unknown_auction":
		return http.StatusNotFound
	case "internal", "escrow_failed":
		return http.StatusInternalServerError
	case "not_auctioneer", "not_winner":
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

func (h *House) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed auction id"})
		return
	}
	rec, found := h.ledger.Get(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_auction"})
		return
	}
	writeJSON(w, http.StatusOK, houseapi.ViewRecord(rec, h.clock.Now()))
}

func (h *House) handleReceipts(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed auction id"})
		return
	}
	signed := h.Receipts(id)
	out := make([]string, 0, len(signed))
	for _, s := range signed {
		out = append(out, base64.StdEncoding.EncodeToString(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"auction_id": id, "receipts": out})
}
