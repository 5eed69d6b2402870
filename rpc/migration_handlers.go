package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"migrator/native/migration"
)

type migratePayload struct {
	Class   string   `json:"class"`
	Caller  string   `json:"caller"`
	TokenID string   `json:"tokenId,omitempty"`
	IDs     []string `json:"tokenIds,omitempty"`
	Amount  string   `json:"amount,omitempty"`
	Amounts []string `json:"amounts,omitempty"`
	Token   string   `json:"token,omitempty"`
}

func decodePayload(req *RPCRequest) (*migratePayload, error) {
	if len(req.Params) != 1 {
		return nil, fmt.Errorf("expected a single params object")
	}
	var payload migratePayload
	if err := json.Unmarshal(req.Params[0], &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *Server) handleMigrate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	payload, err := decodePayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := migration.ParseAddress(payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}

	started := time.Now()
	rollback := s.begin()
	var class string
	switch payload.Class {
	case migration.ClassFungible:
		class = migration.ClassFungible
		if s.engines.Fungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "fungible engine not configured", nil)
			return
		}
		amount, perr := parseBig(payload.Amount)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", perr.Error())
			return
		}
		err = s.engines.Fungible.Migrate(caller, amount)
	case migration.ClassNonFungible:
		class = migration.ClassNonFungible
		if s.engines.NonFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "nonfungible engine not configured", nil)
			return
		}
		id, perr := parseBig(payload.TokenID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tokenId", perr.Error())
			return
		}
		err = s.engines.NonFungible.Migrate(caller, id)
	case migration.ClassSemiFungible:
		class = migration.ClassSemiFungible
		if s.engines.SemiFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "semifungible engine not configured", nil)
			return
		}
		id, perr := parseBig(payload.TokenID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tokenId", perr.Error())
			return
		}
		amount, perr := parseBig(payload.Amount)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", perr.Error())
			return
		}
		err = s.engines.SemiFungible.Migrate(caller, id, amount)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown asset class", payload.Class)
		return
	}
	s.metrics.ObserveMigration(class, time.Since(started), err)
	if err != nil {
		rollback()
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "completed"})
}

func (s *Server) handleMigrateBatch(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	payload, err := decodePayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if s.engines.NonFungible == nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "nonfungible engine not configured", nil)
		return
	}
	caller, err := migration.ParseAddress(payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	ids, err := parseBigList(payload.IDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tokenIds", err.Error())
		return
	}

	started := time.Now()
	rollback := s.begin()
	err = s.engines.NonFungible.MigrateBatch(caller, ids)
	s.metrics.ObserveMigration(migration.ClassNonFungible, time.Since(started), err)
	if err != nil {
		rollback()
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"status": "completed", "count": len(ids)})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowOp(w, req, "deposit")
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowOp(w, req, "withdraw")
}

func (s *Server) handleEscrowOp(w http.ResponseWriter, req *RPCRequest, op string) {
	payload, err := decodePayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := migration.ParseAddress(payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}

	rollback := s.begin()
	var class string
	switch payload.Class {
	case migration.ClassFungible:
		class = migration.ClassFungible
		if s.engines.Fungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "fungible engine not configured", nil)
			return
		}
		amount, perr := parseBig(payload.Amount)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", perr.Error())
			return
		}
		if op == "deposit" {
			err = s.engines.Fungible.Deposit(caller, amount)
		} else {
			err = s.engines.Fungible.Withdraw(caller, amount)
		}
	case migration.ClassNonFungible:
		class = migration.ClassNonFungible
		if s.engines.NonFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "nonfungible engine not configured", nil)
			return
		}
		ids, perr := parseBigList(payload.IDs)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tokenIds", perr.Error())
			return
		}
		if op == "deposit" {
			err = s.engines.NonFungible.DepositBatch(caller, ids)
		} else {
			err = s.engines.NonFungible.WithdrawBatch(caller, ids)
		}
	case migration.ClassSemiFungible:
		class = migration.ClassSemiFungible
		if s.engines.SemiFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "semifungible engine not configured", nil)
			return
		}
		ids, perr := parseBigList(payload.IDs)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tokenIds", perr.Error())
			return
		}
		amounts, perr := parseBigList(payload.Amounts)
		if perr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amounts", perr.Error())
			return
		}
		if op == "deposit" {
			err = s.engines.SemiFungible.DepositBatch(caller, ids, amounts)
		} else {
			err = s.engines.SemiFungible.WithdrawBatch(caller, ids, amounts)
		}
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown asset class", payload.Class)
		return
	}
	s.metrics.ObserveEscrowOp(class, op, err)
	if err != nil {
		rollback()
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok"})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handlePauseToggle(w, req, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handlePauseToggle(w, req, false)
}

func (s *Server) handlePauseToggle(w http.ResponseWriter, req *RPCRequest, pause bool) {
	payload, err := decodePayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := migration.ParseAddress(payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	toggle := func(p interface {
		Pause(caller [20]byte) error
		Unpause(caller [20]byte) error
	}) error {
		if pause {
			return p.Pause(caller)
		}
		return p.Unpause(caller)
	}
	switch payload.Class {
	case migration.ClassFungible:
		if s.engines.Fungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "fungible engine not configured", nil)
			return
		}
		err = toggle(s.engines.Fungible)
	case migration.ClassNonFungible:
		if s.engines.NonFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "nonfungible engine not configured", nil)
			return
		}
		err = toggle(s.engines.NonFungible)
	case migration.ClassSemiFungible:
		if s.engines.SemiFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "semifungible engine not configured", nil)
			return
		}
		err = toggle(s.engines.SemiFungible)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown asset class", payload.Class)
		return
	}
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok"})
}

func (s *Server) handleRecover(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	payload, err := decodePayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "recovery not configured", nil)
		return
	}
	caller, err := migration.ParseAddress(payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	tokenAddr, err := migration.ParseAddress(payload.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token", err.Error())
		return
	}
	amount, err := parseBig(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	rollback := s.begin()
	var class string
	switch payload.Class {
	case migration.ClassFungible:
		class = migration.ClassFungible
		if s.engines.Fungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "fungible engine not configured", nil)
			return
		}
		token, rerr := s.resolver.FungibleTokenAt(tokenAddr, s.engines.Fungible.Custodian())
		if rerr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown token", rerr.Error())
			return
		}
		err = s.engines.Fungible.Recover(caller, token, amount)
	case migration.ClassNonFungible:
		class = migration.ClassNonFungible
		if s.engines.NonFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "nonfungible engine not configured", nil)
			return
		}
		token, rerr := s.resolver.FungibleTokenAt(tokenAddr, s.engines.NonFungible.Custodian())
		if rerr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown token", rerr.Error())
			return
		}
		err = s.engines.NonFungible.Recover(caller, token, amount)
	case migration.ClassSemiFungible:
		class = migration.ClassSemiFungible
		if s.engines.SemiFungible == nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "semifungible engine not configured", nil)
			return
		}
		token, rerr := s.resolver.FungibleTokenAt(tokenAddr, s.engines.SemiFungible.Custodian())
		if rerr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown token", rerr.Error())
			return
		}
		err = s.engines.SemiFungible.Recover(caller, token, amount)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown asset class", payload.Class)
		return
	}
	s.metrics.ObserveEscrowOp(class, "recover", err)
	if err != nil {
		rollback()
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok"})
}

type engineStatus struct {
	Administrator string `json:"administrator"`
	Custodian     string `json:"custodian"`
	Sink          string `json:"sink"`
	Paused        bool   `json:"paused"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	status := make(map[string]interface{})
	if e := s.engines.Fungible; e != nil {
		status[migration.ClassFungible] = statusOf(e.Administrator(), e.Custodian(), e.SinkAddress(), e.IsPaused())
	}
	if e := s.engines.NonFungible; e != nil {
		status[migration.ClassNonFungible] = statusOf(e.Administrator(), e.Custodian(), e.SinkAddress(), e.IsPaused())
	}
	if e := s.engines.SemiFungible; e != nil {
		status[migration.ClassSemiFungible] = statusOf(e.Administrator(), e.Custodian(), e.SinkAddress(), e.IsPaused())
	}
	if s.receipts != nil {
		head, err := s.receipts.Head()
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "receipt head unavailable", err.Error())
			return
		}
		status["receiptHead"] = head
	}
	writeResult(w, req.ID, status)
}

func statusOf(admin, custodian, sink [20]byte, paused bool) engineStatus {
	return engineStatus{
		Administrator: migration.FormatAddress(admin),
		Custodian:     migration.FormatAddress(custodian),
		Sink:          migration.FormatAddress(sink),
		Paused:        paused,
	}
}

type receiptView struct {
	Sequence  uint64 `json:"sequence"`
	Class     string `json:"class"`
	Caller    string `json:"caller"`
	TokenID   string `json:"tokenId,omitempty"`
	Amount    string `json:"amount,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *Server) handleReceipts(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.receipts == nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "receipt ledger not configured", nil)
		return
	}
	var payload struct {
		From  uint64 `json:"from"`
		Limit int    `json:"limit"`
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &payload); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payload", err.Error())
			return
		}
	}
	if payload.Limit <= 0 || payload.Limit > 500 {
		payload.Limit = 100
	}
	receipts, err := s.receipts.List(payload.From, payload.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "receipt listing failed", err.Error())
		return
	}
	views := make([]receiptView, 0, len(receipts))
	for _, receipt := range receipts {
		view := receiptView{
			Sequence:  receipt.Sequence,
			Class:     receipt.Class,
			Caller:    migration.FormatAddress(receipt.Caller),
			CreatedAt: receipt.CreatedAt,
		}
		if receipt.TokenID != nil {
			view.TokenID = receipt.TokenID.String()
		}
		if receipt.Amount != nil {
			view.Amount = receipt.Amount.String()
		}
		views = append(views, view)
	}
	writeResult(w, req.ID, views)
}

func parseBig(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("value required")
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("not a base-10 integer: %q", raw)
	}
	return value, nil
}

func parseBigList(raw []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(raw))
	for _, item := range raw {
		value, err := parseBig(item)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}
