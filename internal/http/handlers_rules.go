package http

import (
	"context"
	"errors"
	"net/http"

	"conto/internal/core"
	"conto/internal/rules"
	"conto/internal/store"
)

type ruleRequest struct {
	Key      string        `json:"key"`
	Category core.Category `json:"category"`
}

func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(map[string][]rules.Rule{
		"merchant": s.svc.Rules.Rules(),
		"card":     s.svc.Rules.CardRules(),
	}).Write(w)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	s.createRule(w, r, s.svc.Rules.CreateRule)
}

func (s *Server) handleCreateCardRule(w http.ResponseWriter, r *http.Request) {
	s.createRule(w, r, s.svc.Rules.CreateCardRule)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request, create func(ctx context.Context, key string, c core.Category) error) {
	var req ruleRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	c, err := core.ParseCategory(string(req.Category))
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	err = create(r.Context(), sanitizeInput(req.Key), c)
	if isValidationErr(err) {
		ErrorFor(r, err).Write(w)
		return
	}
	rule := rules.Rule{Key: rules.Normalize(req.Key), Category: c}
	resp := NewJSONResponse().Status(http.StatusCreated).Data(rule)
	if err != nil {
		resp.Warning(warningPersist)
	}
	resp.Write(w)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	s.deleteRule(w, r, s.svc.Rules.DeleteRule, r.PathValue("merchant"))
}

func (s *Server) handleDeleteCardRule(w http.ResponseWriter, r *http.Request) {
	s.deleteRule(w, r, s.svc.Rules.DeleteCardRule, r.PathValue("card"))
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, key string) error, key string) {
	if err := del(r.Context(), key); err != nil {
		NewJSONResponse().Data(map[string]string{"key": rules.Normalize(key)}).Warning(warningPersist).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApplyRules(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Transactions.ApplyRules(r.Context())
	resp := NewJSONResponse().Data(map[string]int{"changed": n})
	if err != nil {
		if !errors.Is(err, store.ErrPersist) {
			ErrorFor(r, err).Write(w)
			return
		}
		resp.Warning(warningPersist)
	}
	resp.Write(w)
}

func isValidationErr(err error) bool {
	return errors.Is(err, rules.ErrEmptyKey) ||
		errors.Is(err, rules.ErrUnclassifiedRule) ||
		errors.Is(err, core.ErrInvalidCategory)
}
