package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"conto/internal/core"
	"conto/internal/report"
)

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.svc.Transactions.Settlement(r.Context())).Write(w)
}

func (s *Server) handleSettlementPDF(w http.ResponseWriter, r *http.Request) {
	rep := s.svc.Transactions.Settlement(r.Context())

	var buf bytes.Buffer
	if err := report.SettlementPDF(&buf, rep.Result, rep.Proportions, s.opts.Names, time.Now()); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="settlement.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGetProportions(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.svc.Settings.Proportions(r.Context())).Write(w)
}

func (s *Server) handlePutProportions(w http.ResponseWriter, r *http.Request) {
	var p core.ProportionSettings
	if err := DecodeJSON(w, r, &p, false); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	if err := s.svc.Settings.SetProportions(r.Context(), p); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(p).Write(w)
}
