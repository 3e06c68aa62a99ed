package api

import (
	"math/big"
	"net/http"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/zrc2"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/zrc6"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Faucet routes drive the in-process collections and tokens so a sandbox can be
// exercised end to end. They are disabled unless configured.
func (s *Server) addFaucetRoutes(r *mux.Router) {
	r.HandleFunc("/faucet", s.idempotent(s.handleFaucet)).Methods("POST")
	r.HandleFunc("/collections/{contract}/mint", s.idempotent(s.handleMint)).Methods("POST")
	r.HandleFunc("/collections/{contract}/approve", s.idempotent(s.handleSetApprovalForAll)).Methods("POST")
	r.HandleFunc("/tokens/{token}/mint", s.idempotent(s.handleTokenMint)).Methods("POST")
	r.HandleFunc("/tokens/{token}/deposit", s.idempotent(s.handleDeposit)).Methods("POST")
	r.HandleFunc("/tokens/{token}/approve", s.idempotent(s.handleApprove)).Methods("POST")
	r.HandleFunc("/tokens/{token}/balances/{owner}", s.handleTokenBalance).Methods("GET")
}

type faucetRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := parseAddressParam(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := entity.ParseZil(req.Amount)
	if err != nil {
		writeError(w, fault.New(fault.InvalidArgument, "Invalid amount"))
		return
	}

	var view accountView
	err = s.chain.Do(func() error {
		if err := s.chain.Ledger().Credit(account, amount); err != nil {
			return err
		}
		view = accountView{Address: newAddressView(account), Balance: newAmountView(s.chain.Ledger().BalanceOf(account), entity.ZilDecimals)}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().With(zap.String("account", entity.LowerHex(account)), zap.String("amount", req.Amount)).Info("Api: Faucet")
	writeJSON(w, http.StatusOK, view)
}

type mintRequest struct {
	To  string `json:"to"`
	Uri string `json:"uri"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	to, err := parseAddressParam(req.To, "recipient")
	if err != nil {
		writeError(w, err)
		return
	}

	var nft entity.Nft
	err = s.chain.Do(func() error {
		collection, err := s.collection(mux.Vars(r)["contract"])
		if err != nil {
			return err
		}
		tokenId, err := collection.Mint(to, req.Uri)
		if err != nil {
			return err
		}
		nft, err = collection.Nft(tokenId)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nftView{
		Contract:     newAddressView(nft.Contract),
		TokenId:      nft.TokenId,
		TokenUri:     nft.TokenUri,
		Owner:        newAddressView(nft.Owner),
		RightsHolder: newAddressView(nft.Owner),
		Offers:       make([]offerView, 0),
	})
}

type approvalRequest struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved *bool  `json:"approved"`
}

func (s *Server) handleSetApprovalForAll(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if !decode(w, r, &req) {
		return
	}
	owner, err := parseAddressParam(req.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	operator := s.market.Address()
	if req.Operator != "" {
		if operator, err = parseAddressParam(req.Operator, "operator"); err != nil {
			writeError(w, err)
			return
		}
	}
	approved := req.Approved == nil || *req.Approved

	err = s.chain.Do(func() error {
		collection, err := s.collection(mux.Vars(r)["contract"])
		if err != nil {
			return err
		}
		return collection.SetApprovalForAll(owner, operator, approved)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approved": approved})
}

type tokenAmountRequest struct {
	Account string `json:"account"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, func(token *zrc2.Token, account, _ common.Address, amount string) error {
		qa, err := parseTokenAmount(token, amount)
		if err != nil {
			return err
		}
		return token.Mint(account, qa)
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, func(token *zrc2.Token, account, _ common.Address, amount string) error {
		qa, err := parseTokenAmount(token, amount)
		if err != nil {
			return err
		}
		return token.Deposit(account, qa)
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, func(token *zrc2.Token, account, spender common.Address, amount string) error {
		qa, err := parseTokenAmount(token, amount)
		if err != nil {
			return err
		}
		return token.Approve(account, spender, qa)
	})
}

func (s *Server) tokenAction(w http.ResponseWriter, r *http.Request, fn func(token *zrc2.Token, account, spender common.Address, amount string) error) {
	var req tokenAmountRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := parseAddressParam(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	spender := s.market.Address()
	if req.Spender != "" {
		if spender, err = parseAddressParam(req.Spender, "spender"); err != nil {
			writeError(w, err)
			return
		}
	}

	var view tokenBalanceView
	err = s.chain.Do(func() error {
		token, err := s.token(mux.Vars(r)["token"])
		if err != nil {
			return err
		}
		if err := fn(token, account, spender, req.Amount); err != nil {
			return err
		}
		view = newTokenBalanceView(token, account, spender)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddressParam(mux.Vars(r)["owner"], "owner")
	if err != nil {
		writeError(w, err)
		return
	}

	var view tokenBalanceView
	err = s.read(func() error {
		token, err := s.token(mux.Vars(r)["token"])
		if err != nil {
			return err
		}
		view = newTokenBalanceView(token, owner, s.market.Address())
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type tokenBalanceView struct {
	Token     addressView `json:"token"`
	Symbol    string      `json:"symbol"`
	Account   addressView `json:"account"`
	Balance   amountView  `json:"balance"`
	Spender   addressView `json:"spender"`
	Allowance amountView  `json:"allowance"`
}

func newTokenBalanceView(token *zrc2.Token, account, spender common.Address) tokenBalanceView {
	return tokenBalanceView{
		Token:     newAddressView(token.Address()),
		Symbol:    token.Symbol(),
		Account:   newAddressView(account),
		Balance:   newAmountView(token.BalanceOf(account), token.Decimals()),
		Spender:   newAddressView(spender),
		Allowance: newAmountView(token.Allowance(account, spender), token.Decimals()),
	}
}

func (s *Server) collection(contract string) (*zrc6.Collection, error) {
	addr, err := parseAddressParam(contract, "contract")
	if err != nil {
		return nil, err
	}
	ct, ok := s.chain.Contract(addr)
	if !ok {
		return nil, fault.New(fault.NotFound, "Collection not found")
	}
	collection, ok := ct.(*zrc6.Collection)
	if !ok {
		return nil, fault.New(fault.InvalidArgument, "Contract is not a collection")
	}
	return collection, nil
}

func (s *Server) token(contract string) (*zrc2.Token, error) {
	addr, err := parseAddressParam(contract, "token")
	if err != nil {
		return nil, err
	}
	ct, ok := s.chain.Contract(addr)
	if !ok {
		return nil, fault.New(fault.NotFound, "Token not found")
	}
	token, ok := ct.(*zrc2.Token)
	if !ok {
		return nil, fault.New(fault.InvalidArgument, "Contract is not a token")
	}
	return token, nil
}

func parseTokenAmount(token *zrc2.Token, amount string) (*big.Int, error) {
	qa, err := entity.ParseUnits(amount, token.Decimals())
	if err != nil {
		return nil, fault.New(fault.InvalidArgument, "Invalid amount")
	}
	return qa, nil
}
