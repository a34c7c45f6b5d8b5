package rpc

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"playmint/crypto"
	"playmint/gateway/middleware"
	"playmint/integrations/exports"
	"playmint/native/issuance"
)

type submitRequest struct {
	Beneficiaries         []uint64         `json:"beneficiaries"`
	Destinations          []crypto.Address `json:"destinations"`
	CommissionDestination crypto.Address   `json:"commissionDestination"`
}

type registerValidatorRequest struct {
	Address crypto.Address `json:"address"`
}

type registerBeneficiaryRequest struct {
	Name        string         `json:"name"`
	Destination crypto.Address `json:"destination"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type destinationRequest struct {
	Destination crypto.Address `json:"destination"`
}

type lockRequest struct {
	Field string `json:"field"`
}

type ownerRequest struct {
	Owner crypto.Address `json:"owner"`
}

type policyUpdateResponse struct {
	Policy  issuance.Policy `json:"policy"`
	Skipped []string        `json:"skipped,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok, err := s.engine.Bootstrapped(r.Context())
	if err != nil || !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEpoch(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.EpochSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.engine.Policy(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.engine.Validator(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func beneficiaryID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleGetBeneficiary(w http.ResponseWriter, r *http.Request) {
	id, ok := beneficiaryID(r)
	if !ok {
		writeBadRequest(w, r, "invalid beneficiary id")
		return
	}
	rec, err := s.engine.Beneficiary(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleLookupBeneficiary(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeBadRequest(w, r, "name query parameter required")
		return
	}
	rec, err := s.engine.BeneficiaryByName(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func caller(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, ok := middleware.CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unsigned request"})
	}
	return addr, ok
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	validator, ok := caller(w, r)
	if !ok {
		return
	}
	receipt, err := s.engine.CheckIn(r.Context(), validator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	validator, ok := caller(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid submission: "+err.Error())
		return
	}
	report, err := s.engine.Submit(r.Context(), issuance.Submission{
		Validator:             validator,
		Beneficiaries:         req.Beneficiaries,
		Destinations:          req.Destinations,
		CommissionDestination: req.CommissionDestination,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	validator, ok := caller(w, r)
	if !ok {
		return
	}
	receipt, err := s.engine.Claim(r.Context(), validator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleRegisterValidator(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req registerValidatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid registration: "+err.Error())
		return
	}
	if req.Address.IsZero() {
		req.Address = from
	}
	rec, err := s.engine.RegisterValidator(r.Context(), from, req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleRegisterBeneficiary(w http.ResponseWriter, r *http.Request) {
	authority, ok := caller(w, r)
	if !ok {
		return
	}
	var req registerBeneficiaryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid registration: "+err.Error())
		return
	}
	rec, err := s.engine.RegisterBeneficiary(r.Context(), authority, req.Name, req.Destination)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleRenameBeneficiary(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := beneficiaryID(r)
	if !ok {
		writeBadRequest(w, r, "invalid beneficiary id")
		return
	}
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid rename: "+err.Error())
		return
	}
	rec, err := s.engine.RenameBeneficiary(r.Context(), from, id, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleChangeDestination(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := beneficiaryID(r)
	if !ok {
		writeBadRequest(w, r, "invalid beneficiary id")
		return
	}
	var req destinationRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid destination: "+err.Error())
		return
	}
	rec, err := s.engine.ChangeDestination(r.Context(), from, id, req.Destination)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleResetApprovals(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := beneficiaryID(r)
	if !ok {
		writeBadRequest(w, r, "invalid beneficiary id")
		return
	}
	rec, err := s.engine.ResetApprovals(r.Context(), from, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var update issuance.PolicyUpdate
	if err := decodeBody(r, &update); err != nil {
		writeBadRequest(w, r, "invalid policy update: "+err.Error())
		return
	}
	policy, skipped, err := s.engine.UpdatePolicy(r.Context(), from, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policyUpdateResponse{Policy: policy, Skipped: skipped})
}

func (s *Server) handleLockField(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid lock: "+err.Error())
		return
	}
	policy, err := s.engine.LockField(r.Context(), from, req.Field)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "invalid owner: "+err.Error())
		return
	}
	policy, err := s.engine.TransferOwnership(r.Context(), from, req.Owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func parseTimeParam(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) handleExportMints(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "ledger journal unavailable"})
		return
	}
	query := r.URL.Query()
	format, err := exports.ParseFormat(query.Get("format"))
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	since, err := parseTimeParam(query.Get("since"))
	if err != nil {
		writeBadRequest(w, r, "invalid since")
		return
	}
	until, err := parseTimeParam(query.Get("until"))
	if err != nil {
		writeBadRequest(w, r, "invalid until")
		return
	}
	entries, err := s.journal.Entries(r.Context(), since, until)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, sum, err := exports.Mints(format, entries)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Content-SHA256", sum)
	w.Header().Set("Content-Disposition", "attachment; filename=mints."+string(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
