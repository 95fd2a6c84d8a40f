package http

import (
	"net/http"

	applog "conto/internal/log"
)

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	files, opts, closeFiles, err := ParseImportForm(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	defer closeFiles()

	preview, err := s.svc.Imports.Preview(r.Context(), files, opts)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Data(preview).Write(w)
}

type commitRequest struct {
	IncludeDuplicates bool `json:"includeDuplicates"`
}

func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	req := commitRequest{IncludeDuplicates: ParseBoolParam(r, "include_duplicates")}
	if err := DecodeJSON(w, r, &req, true); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	id := r.PathValue("id")
	res, err := s.svc.Imports.Commit(r.Context(), id, req.IncludeDuplicates)
	if err != nil && len(res.Imported) == 0 {
		ErrorFor(r, err).Write(w)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Import committed",
		applog.FieldPreviewID, id, applog.FieldRowCount, len(res.Imported))

	NewJSONResponse().Data(res).WarnIfNotPersisted(err).Write(w)
}

func (s *Server) handleImportDiscard(w http.ResponseWriter, r *http.Request) {
	s.svc.Imports.Discard(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
