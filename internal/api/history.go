package api

import (
	"net/http"
	"strconv"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/gorilla/mux"
)

type historyView struct {
	Total   int64                      `json:"total"`
	From    int                        `json:"from"`
	Actions []entity.MarketplaceAction `json:"actions"`
}

func (s *Server) handleNftHistory(w http.ResponseWriter, r *http.Request) {
	contract, err := parseAddressParam(mux.Vars(r)["contract"], "contract")
	if err != nil {
		writeError(w, err)
		return
	}
	tokenId, err := strconv.ParseUint(mux.Vars(r)["tokenId"], 10, 64)
	if err != nil {
		writeError(w, fault.New(fault.InvalidArgument, "Invalid token id"))
		return
	}
	from, size, err := page(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actions, total, err := s.history.GetActionsForNft(r.Context(), contract, tokenId, from, size)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyView{Total: total, From: from, Actions: actions})
}

func (s *Server) handleAccountHistory(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddressParam(mux.Vars(r)["address"], "address")
	if err != nil {
		writeError(w, err)
		return
	}
	from, size, err := page(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actions, total, err := s.history.GetActionsForAccount(r.Context(), address, from, size)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyView{Total: total, From: from, Actions: actions})
}

func page(r *http.Request) (from int, size int, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = strconv.Atoi(v); err != nil || from < 0 {
			return 0, 0, fault.New(fault.InvalidArgument, "Invalid from")
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 {
			return 0, 0, fault.New(fault.InvalidArgument, "Invalid size")
		}
	}

	return from, size, nil
}
