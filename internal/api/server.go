package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/chain"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/fault"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/market"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

var errInvalidParameters = errors.New("invalid parameters")

// Server exposes the marketplace over HTTP. Every call is executed through the
// chain sequencer, so requests are applied one at a time.
type Server struct {
	chain       *chain.Chain
	market      *market.Market
	idempotency *cache.Cache
	faucet      bool
	history     repository.ActionRepository
}

func NewServer(chain *chain.Chain, market *market.Market, idempotency *cache.Cache, faucet bool) *Server {
	return &Server{chain: chain, market: market, idempotency: idempotency, faucet: faucet}
}

// WithHistory serves indexed marketplace history. It must be set before Router is built.
func (s *Server) WithHistory(history repository.ActionRepository) *Server {
	s.history = history
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	r.HandleFunc("/listings", s.idempotent(s.handlePutOnSale)).Methods("POST")
	r.HandleFunc("/listings/{id:[0-9]+}", s.handleGetListing).Methods("GET")
	r.HandleFunc("/listings/{id:[0-9]+}/cancel", s.idempotent(s.handleCancelSale)).Methods("POST")
	r.HandleFunc("/listings/{id:[0-9]+}/buy", s.idempotent(s.handleBuyNFT)).Methods("POST")

	r.HandleFunc("/offers", s.idempotent(s.handleMakeOffer)).Methods("POST")
	r.HandleFunc("/offers/{id:[0-9]+}", s.handleGetOffer).Methods("GET")
	r.HandleFunc("/offers/{id:[0-9]+}/cancel", s.idempotent(s.handleCancelOffer)).Methods("POST")
	r.HandleFunc("/offers/{id:[0-9]+}/accept", s.idempotent(s.handleAcceptOffer)).Methods("POST")

	r.HandleFunc("/nfts/{contract}/{tokenId:[0-9]+}", s.handleGetNft).Methods("GET")
	r.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	r.HandleFunc("/admin/settlement-token", s.idempotent(s.handleSetSettlementToken)).Methods("POST")

	if s.history != nil {
		r.HandleFunc("/nfts/{contract}/{tokenId:[0-9]+}/history", s.handleNftHistory).Methods("GET")
		r.HandleFunc("/accounts/{address}/history", s.handleAccountHistory).Methods("GET")
	}
	if s.faucet {
		s.addFaucetRoutes(r)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorView{Error: "Not found"})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

type callRequest struct {
	Sender string `json:"sender"`
	Value  string `json:"value"`
}

func (c callRequest) call() (market.Call, error) {
	sender, err := entity.ParseAddress(c.Sender)
	if err != nil {
		return market.Call{}, fault.New(fault.InvalidArgument, "Invalid sender address")
	}

	value := "0"
	if c.Value != "" {
		value = c.Value
	}
	qa, err := entity.ParseZil(value)
	if err != nil {
		return market.Call{}, fault.New(fault.InvalidArgument, "Invalid value")
	}

	return market.Call{Sender: sender, Value: qa}, nil
}

type putOnSaleRequest struct {
	callRequest
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Price    string `json:"price"`
}

func (s *Server) handlePutOnSale(w http.ResponseWriter, r *http.Request) {
	var req putOnSaleRequest
	if !decode(w, r, &req) {
		return
	}
	call, err := req.call()
	if err != nil {
		writeError(w, err)
		return
	}
	contract, err := parseAddressParam(req.Contract, "contract")
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := entity.ParseZil(req.Price)
	if err != nil {
		writeError(w, fault.New(fault.InvalidArgument, "Invalid price"))
		return
	}

	s.execute(w, func() (*market.Receipt, error) {
		return s.market.PutOnSale(call, contract, req.TokenId, price)
	})
}

func (s *Server) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	s.executeOnId(w, r, func(call market.Call, id uint64) (*market.Receipt, error) {
		return s.market.CancelSale(call, id)
	})
}

func (s *Server) handleBuyNFT(w http.ResponseWriter, r *http.Request) {
	s.executeOnId(w, r, func(call market.Call, id uint64) (*market.Receipt, error) {
		return s.market.BuyNFT(call, id)
	})
}

type makeOfferRequest struct {
	callRequest
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Price    string `json:"price"`
}

func (s *Server) handleMakeOffer(w http.ResponseWriter, r *http.Request) {
	var req makeOfferRequest
	if !decode(w, r, &req) {
		return
	}
	call, err := req.call()
	if err != nil {
		writeError(w, err)
		return
	}
	contract, err := parseAddressParam(req.Contract, "contract")
	if err != nil {
		writeError(w, err)
		return
	}

	var receipt *market.Receipt
	err = s.chain.Do(func() error {
		price, err := entity.ParseUnits(req.Price, s.tokenDecimals(s.market.SettlementToken()))
		if err != nil {
			return fault.New(fault.InvalidArgument, "Invalid price")
		}
		receipt, err = s.market.MakeOffer(call, contract, req.TokenId, price)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, r *http.Request) {
	s.executeOnId(w, r, func(call market.Call, id uint64) (*market.Receipt, error) {
		return s.market.CancelOffer(call, id)
	})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	s.executeOnId(w, r, func(call market.Call, id uint64) (*market.Receipt, error) {
		return s.market.AcceptOffer(call, id)
	})
}

type settlementTokenRequest struct {
	callRequest
	Token string `json:"token"`
}

func (s *Server) handleSetSettlementToken(w http.ResponseWriter, r *http.Request) {
	var req settlementTokenRequest
	if !decode(w, r, &req) {
		return
	}
	call, err := req.call()
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := parseAddressParam(req.Token, "token")
	if err != nil {
		writeError(w, err)
		return
	}

	s.execute(w, func() (*market.Receipt, error) {
		return s.market.SetSettlementToken(call, token)
	})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := getId(r)
	if err != nil {
		writeError(w, fault.New(fault.InvalidArgument, err.Error()))
		return
	}

	var view listingView
	err = s.read(func() error {
		listing, err := s.market.Listing(id)
		if err != nil {
			return err
		}
		view = newListingView(listing)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := getId(r)
	if err != nil {
		writeError(w, fault.New(fault.InvalidArgument, err.Error()))
		return
	}

	var view offerView
	err = s.read(func() error {
		offer, err := s.market.Offer(id)
		if err != nil {
			return err
		}
		view = s.offerView(offer)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetNft(w http.ResponseWriter, r *http.Request) {
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

	var view nftView
	err = s.read(func() error {
		nft, err := s.chain.NonFungible(contract)
		if err != nil {
			return err
		}
		owner, err := nft.OwnerOf(tokenId)
		if err != nil {
			return err
		}
		holder, err := s.market.RightsHolder(contract, tokenId)
		if err != nil {
			return err
		}

		view = nftView{
			Contract:     newAddressView(contract),
			TokenId:      tokenId,
			Owner:        newAddressView(owner),
			RightsHolder: newAddressView(holder),
			Offers:       make([]offerView, 0),
		}
		if uri, ok := nft.(interface{ TokenURI(uint64) (string, error) }); ok {
			view.TokenUri, _ = uri.TokenURI(tokenId)
		}
		if listing, listed := s.market.ActiveListing(contract, tokenId); listed {
			lv := newListingView(listing)
			view.Listing = &lv
		}
		for _, offer := range s.market.OffersFor(contract, tokenId) {
			view.Offers = append(view.Offers, s.offerView(offer))
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddressParam(mux.Vars(r)["address"], "address")
	if err != nil {
		writeError(w, err)
		return
	}

	var view accountView
	_ = s.read(func() error {
		view = accountView{
			Address: newAddressView(address),
			Balance: newAmountView(s.chain.Ledger().BalanceOf(address), entity.ZilDecimals),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	var view configView
	_ = s.read(func() error {
		view = configView{
			Address:         newAddressView(s.market.Address()),
			Admin:           newAddressView(s.market.Admin()),
			ListingFee:      newAmountView(s.market.ListingFee(), entity.ZilDecimals),
			AcceptanceFee:   newAmountView(s.market.AcceptanceFee(), entity.ZilDecimals),
			OfferValidity:   s.market.OfferValidity().String(),
			SettlementToken: newAddressView(s.market.SettlementToken()),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) offerView(offer entity.Offer) offerView {
	return newOfferView(offer, s.tokenDecimals(offer.Token), s.chain.Now(), s.market.OfferValidity())
}

func (s *Server) tokenDecimals(addr common.Address) int32 {
	if ct, ok := s.chain.Contract(addr); ok {
		if token, ok := ct.(interface{ Decimals() int32 }); ok {
			return token.Decimals()
		}
	}
	return entity.ZilDecimals
}

func (s *Server) executeOnId(w http.ResponseWriter, r *http.Request, fn func(call market.Call, id uint64) (*market.Receipt, error)) {
	id, err := getId(r)
	if err != nil {
		writeError(w, fault.New(fault.InvalidArgument, err.Error()))
		return
	}
	var req callRequest
	if !decode(w, r, &req) {
		return
	}
	call, err := req.call()
	if err != nil {
		writeError(w, err)
		return
	}

	s.execute(w, func() (*market.Receipt, error) {
		return fn(call, id)
	})
}

func (s *Server) execute(w http.ResponseWriter, fn func() (*market.Receipt, error)) {
	var receipt *market.Receipt
	err := s.chain.Do(func() error {
		var err error
		receipt, err = fn()
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) read(fn func() error) error {
	return s.chain.Do(fn)
}

// idempotent replays the stored response for a repeated Idempotency-Key
// instead of executing the call again.
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" || s.idempotency == nil {
			next(w, r)
			return
		}
		key = r.Method + " " + r.URL.Path + " " + key

		// the key is reserved before the call runs so a concurrent retry cannot execute it twice
		if err := s.idempotency.Add(key, inFlight{}, cache.DefaultExpiration); err != nil {
			cached, found := s.idempotency.Get(key)
			resp, done := cached.(recordedResponse)
			if !found || !done {
				writeError(w, fault.New(fault.StateConflict, "Request with this Idempotency-Key is in progress"))
				return
			}
			zap.L().With(zap.String("key", key)).Debug("Api: Replaying idempotent response")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(resp.status)
			_, _ = w.Write(resp.body)
			return
		}

		completed := false
		defer func() {
			if !completed {
				s.idempotency.Delete(key)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.idempotency.Set(key, recordedResponse{status: rec.status, body: rec.body.Bytes()}, cache.DefaultExpiration)
		completed = true
	}
}

// inFlight marks an idempotency key whose call has not finished yet.
type inFlight struct{}

type recordedResponse struct {
	status int
	body   []byte
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, fault.New(fault.InvalidArgument, "Invalid request body"))
		return false
	}
	return true
}

func getId(r *http.Request) (uint64, error) {
	id, ok := mux.Vars(r)["id"]
	if !ok {
		return 0, errInvalidParameters
	}

	return strconv.ParseUint(id, 10, 64)
}

func parseAddressParam(value, name string) (common.Address, error) {
	addr, err := entity.ParseAddress(value)
	if err != nil {
		return addr, fault.Newf(fault.InvalidArgument, "Invalid %s address", name)
	}
	return addr, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().With(zap.Error(err)).Error("Api: Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		zap.L().With(zap.Error(err)).Error("Api: Request failed")
	}

	writeJSON(w, status, errorView{Error: err.Error(), Kind: string(kind)})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Authorization:
		return http.StatusForbidden
	case fault.StateConflict:
		return http.StatusConflict
	case fault.InsufficientFunds:
		return http.StatusPaymentRequired
	case fault.Expired:
		return http.StatusGone
	case fault.SelfTrade:
		return http.StatusUnprocessableEntity
	case fault.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewIdempotencyCache keeps replayable responses for ttl.
func NewIdempotencyCache(ttl time.Duration) *cache.Cache {
	return cache.New(ttl, 2*ttl)
}
