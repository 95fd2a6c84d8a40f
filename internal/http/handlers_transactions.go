package http

import (
	"fmt"
	"net/http"
	"strings"

	"conto/internal/core"
	"conto/internal/services"
	applog "conto/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
		parsed, err := core.ParseCategory(v)
		if err != nil {
			ErrorFor(r, err).Write(w)
			return
		}
		c = parsed
	}

	txs := s.svc.Transactions.List(c)
	NewJSONResponse().Data(map[string]any{
		"transactions": txs,
		"count":        len(txs),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.NewTransaction
	if err := DecodeJSON(w, r, &in, false); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Card = sanitizeInput(in.Card)
	if in.Category != "" {
		c, err := core.ParseCategory(string(in.Category))
		if err != nil {
			ErrorFor(r, err).Write(w)
			return
		}
		in.Category = c
	}
	if p, err := core.ParseParty(string(in.PaidBy)); err == nil {
		in.PaidBy = p
	}

	tx, err := s.svc.Transactions.Create(r.Context(), in)
	if tx.ID == "" {
		ErrorFor(r, err).Write(w)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().WithTransaction(tx.ID, string(tx.Category), string(tx.PaidBy), tx.Amount).ToSlice()...)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Data(tx).
		WarnIfNotPersisted(err).
		Write(w)
}

type categorizeRequest struct {
	Category core.Category `json:"category"`
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	c, err := core.ParseCategory(string(req.Category))
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	res, err := s.svc.Transactions.Categorize(r.Context(), r.PathValue("id"), c)
	if res.Transaction.ID == "" {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(res).WarnIfNotPersisted(err).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.svc.Transactions.Delete(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case isPersistErr(err):
		NewJSONResponse().Data(map[string]string{"id": id}).WarnIfNotPersisted(err).Write(w)
	default:
		ErrorFor(r, fmt.Errorf("delete transaction: %w", err)).Write(w)
	}
}
