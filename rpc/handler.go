package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/indexer"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	exec     *vm.Executor
	resolver identity.Resolver
	indexer  *indexer.Indexer
	logger   *zap.Logger
}

// NewHandler creates an RPC Handler.
func NewHandler(exec *vm.Executor, resolver identity.Resolver, idx *indexer.Indexer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{exec: exec, resolver: resolver, indexer: idx, logger: logger.Named("rpc")}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "sendTx":
		return h.sendTx(req)
	case "getReceipt":
		return h.getReceipt(req)
	case "getHeight":
		return okResponse(req.ID, h.exec.Head())
	case "getStateRoot":
		return h.view(req, func(st core.State) (any, error) {
			return map[string]string{"root": st.ComputeRoot()}, nil
		})

	case "getGame":
		return h.getGame(req)
	case "getPlayer":
		return h.getPlayer(req)
	case "getStake":
		return h.getStake(req)
	case "getGameStakes":
		return h.getGameStakes(req)
	case "getBalance":
		return h.getBalance(req)
	case "getAllowance":
		return h.getAllowance(req)
	case "getNFT":
		return h.getNFT(req)
	case "getParams":
		return h.view(req, func(st core.State) (any, error) { return st.GetParams() })
	case "resolveName":
		return h.resolveName(req)

	case "getGamesByPlayer":
		return h.byAddress(req, "player", h.indexer.GamesByPlayer)
	case "getGamesByCreator":
		return h.byAddress(req, "creator", h.indexer.GamesByCreator)
	case "getNFTsByOwner":
		return h.byAddress(req, "owner", h.indexer.NFTsByOwner)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// view runs a read against committed state and maps core.ErrNotFound to
// CodeNotFound.
func (h *Handler) view(req Request, fn func(st core.State) (any, error)) Response {
	var result any
	err := h.exec.View(func(st core.State) error {
		var err error
		result, err = fn(st)
		return err
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrGameDoesNotExist) {
			return errResponse(req.ID, CodeNotFound, err.Error())
		}
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, result)
}

type addressParams struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Player  string `json:"player"`
	Creator string `json:"creator"`
	GameID  uint64 `json:"game_id"`
	TokenID uint64 `json:"token_id"`
	Handle  string `json:"handle"`
}

func decodeParams(req Request) (addressParams, *Response) {
	var p addressParams
	if len(req.Params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return p, &resp
	}
	return p, nil
}

func parseAddr(req Request, name, s string) (common.Address, *Response) {
	if s == "" {
		resp := errResponse(req.ID, CodeInvalidParams, name+" is required")
		return common.Address{}, &resp
	}
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, err.Error())
		return common.Address{}, &resp
	}
	return addr, nil
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	rcpt, err := h.exec.Submit(&tx)
	if err != nil {
		h.logger.Debug("tx rejected", zap.String("tx", tx.ID), zap.Error(err))
		return errResponse(req.ID, CodeTxRejected, err.Error())
	}
	return okResponse(req.ID, rcpt)
}

func (h *Handler) getReceipt(req Request) Response {
	var params struct {
		TxID string `json:"tx_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.TxID == "" {
		return errResponse(req.ID, CodeInvalidParams, "tx_id is required")
	}
	rcpt, err := h.exec.Receipt(params.TxID)
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(req.ID, CodeNotFound, "receipt not found")
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, rcpt)
}

func (h *Handler) getGame(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) {
		g, err := st.GetGame(p.GameID)
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("game %d: %w", p.GameID, core.ErrGameDoesNotExist)
		}
		return g, err
	})
}

func (h *Handler) getPlayer(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	player, bad := parseAddr(req, "player", p.Player)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) { return st.GetPlayer(p.GameID, player) })
}

func (h *Handler) getStake(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	player, bad := parseAddr(req, "player", p.Player)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) { return st.GetStake(p.GameID, player) })
}

func (h *Handler) getGameStakes(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) { return st.GetGameStakes(p.GameID) })
}

func (h *Handler) getBalance(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	addr, bad := parseAddr(req, "address", p.Address)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) { return st.GetAccount(addr) })
}

func (h *Handler) getAllowance(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	owner, bad := parseAddr(req, "owner", p.Owner)
	if bad != nil {
		return *bad
	}
	spender, bad := parseAddr(req, "spender", p.Spender)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) { return st.GetAllowance(owner, spender) })
}

func (h *Handler) getNFT(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(st core.State) (any, error) { return st.GetNFT(p.TokenID) })
}

func (h *Handler) resolveName(req Request) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	if p.Handle == "" {
		return errResponse(req.ID, CodeInvalidParams, "handle is required")
	}
	return h.view(req, func(st core.State) (any, error) {
		addr, err := h.resolver.Resolve(st, p.Handle)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"handle":  p.Handle,
			"node":    identity.Node(p.Handle).Hex(),
			"address": addr.Hex(),
		}, nil
	})
}

func (h *Handler) byAddress(req Request, name string, lookup func(common.Address) ([]uint64, error)) Response {
	p, bad := decodeParams(req)
	if bad != nil {
		return *bad
	}
	raw := map[string]string{"player": p.Player, "creator": p.Creator, "owner": p.Owner}[name]
	addr, bad := parseAddr(req, name, raw)
	if bad != nil {
		return *bad
	}
	ids, err := lookup(addr)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ids == nil {
		ids = []uint64{}
	}
	return okResponse(req.ID, ids)
}
