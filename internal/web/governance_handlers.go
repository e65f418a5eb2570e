package web

import (
	"net/http"

	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/usecase"
)

type parametersRequest struct {
	Product    domain.Product    `json:"product"`
	Parameters domain.Parameters `json:"parameters"`
}

type utilizationRequest struct {
	Product    domain.Product `json:"product"`
	Multiplier uint64         `json:"multiplier"`
}

type tradeVolumeRequest struct {
	Owner   domain.Identity `json:"owner"`
	Product domain.Product  `json:"product"`
	Volume  uint64          `json:"volume"`
}

type proposalRequest struct {
	Proposer domain.Identity `json:"proposer"`
	Payload  []byte          `json:"payload"`
}

type voteRequest struct {
	Voter   domain.Identity `json:"voter"`
	Product domain.Product  `json:"product"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.InitializeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	ledger, err := s.governance.Initialize(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, ledger)
}

func (s *Server) handleUpdateParameters(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req parametersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ledger, err := s.governance.UpdateParameters(r.Context(), caller, req.Product, req.Parameters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ledger)
}

func (s *Server) handleUpdateUtilization(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req utilizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ledger, err := s.governance.UpdateUtilization(r.Context(), caller, req.Product, req.Multiplier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ledger)
}

func (s *Server) handleSetTradeVolume(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req tradeVolumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := s.staking.SetTradeVolume(r.Context(), caller, req.Owner, req.Product, req.Volume)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, pos)
}

func (s *Server) handleSubmitProposal(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req proposalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Proposer == "" {
		req.Proposer = caller
	}
	proposal, err := s.governance.SubmitProposal(r.Context(), caller, req.Proposer, req.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, proposal)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := s.governance.Proposal(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, proposal)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Voter == "" {
		req.Voter = caller
	}
	proposal, err := s.governance.VoteProposal(r.Context(), caller, usecase.VoteRequest{
		Voter:      req.Voter,
		Product:    req.Product,
		ProposalID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, proposal)
}
