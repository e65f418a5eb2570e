package web

import (
	"net/http"

	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/usecase"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	product, err := s.pathProduct(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ledger, err := s.staking.Ledger(r.Context(), product)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ledger)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	product, err := s.pathProduct(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	positions, err := s.staking.Positions(r.Context(), product)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if positions == nil {
		positions = []*domain.Position{}
	}
	writeJSON(w, s.logger, http.StatusOK, positions)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	product, err := s.pathProduct(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := s.staking.Position(r.Context(), domain.Identity(r.PathValue("owner")), product)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, pos)
}

// Owner-scoped requests act for the caller when no owner is named.

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.StakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	pos, err := s.staking.Stake(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, pos)
}

func (s *Server) handleBatchStake(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.BatchStakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	pos, err := s.staking.BatchStake(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, pos)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.UnstakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	res, err := s.staking.Unstake(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, res)
}

func (s *Server) handleBatchUnstake(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.BatchUnstakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	res, err := s.staking.BatchUnstake(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, res)
}

func (s *Server) handleDepositFee(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.DepositFeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Depositor == "" {
		req.Depositor = caller
	}
	ledger, err := s.staking.DepositFee(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ledger)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.ClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	res, err := s.staking.Claim(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, res)
}

func (s *Server) handleCompound(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req usecase.ClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Owner == "" {
		req.Owner = caller
	}
	res, err := s.staking.Compound(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, res)
}
