package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wowserver/internal/logger"
	"wowserver/internal/metrics"
	"wowserver/internal/models"
	"wowserver/internal/services/accounts"
	"wowserver/internal/services/sessions"
	msgtypes "wowserver/internal/types"

	"github.com/sirupsen/logrus"
)

// opError is a failure that already carries its wire code.
type opError struct {
	code msgtypes.Code
	msg  string
}

func (e *opError) Error() string { return e.msg }

var (
	errUnauthenticated  = &opError{msgtypes.CodeUnauthenticated, "login required"}
	errPermissionDenied = &opError{msgtypes.CodePermissionDenied, "permission denied"}
	errThrottled        = &opError{msgtypes.CodeResourceExhausted, "too many login attempts, try again later"}
)

type operation struct {
	// role required to run the operation; zero means no session is needed
	role sessions.Role
	run  func(ctx context.Context, c *Client, s sessions.Session, params json.RawMessage) (any, error)
}

func (h *Hub) operations() map[msgtypes.Op]operation {
	return map[msgtypes.Op]operation{
		msgtypes.OpLogin:                     {run: h.login},
		msgtypes.OpLogout:                    {role: sessions.RoleUser, run: h.logout},
		msgtypes.OpCreateAccount:             {run: h.createAccount},
		msgtypes.OpRetrieveAccountCharacters: {role: sessions.RoleUser, run: h.accountCharacters},
		msgtypes.OpRetrieveAllCharacters:     {role: sessions.RoleAdmin, run: h.allCharacters},
		msgtypes.OpAddCharacter:              {role: sessions.RoleUser, run: h.addCharacter},
		msgtypes.OpUpdateCharacters:          {role: sessions.RoleUser, run: h.updateCharacters},
		msgtypes.OpUpdateCharacterLevels:     {role: sessions.RoleAdmin, run: h.updateCharacterLevels},
		msgtypes.OpDeleteCharacter:           {role: sessions.RoleUser, run: h.deleteCharacter},
	}
}

func (h *Hub) handleRequest(c *Client, req msgtypes.Request) msgtypes.Response {
	start := time.Now()
	resp := msgtypes.Response{Type: msgtypes.MsgTypeResponse, ID: req.ID}

	result, err := h.execute(c, req)
	code := "ok"
	if err != nil {
		resp.Code, resp.Error = classify(err)
		code = string(resp.Code)
	} else {
		resp.OK = true
		if result != nil {
			resp.Result = mustJSON(result)
		}
	}

	op := string(req.Op)
	if _, known := h.ops[req.Op]; !known {
		op = "unknown"
	}
	metrics.RecordOp(op, code, time.Since(start))

	entry := logger.Connection().WithFields(logrus.Fields{"client_id": c.ID, "op": req.Op, "id": req.ID, "code": code})
	switch {
	case resp.Code == msgtypes.CodeInternal:
		entry.WithError(err).Error("operation failed")
	case err != nil:
		entry.WithField("error", resp.Error).Info("operation rejected")
	default:
		entry.Debug("operation done")
	}
	return resp
}

func (h *Hub) execute(c *Client, req msgtypes.Request) (any, error) {
	op, ok := h.ops[req.Op]
	if !ok {
		return nil, &opError{msgtypes.CodeInvalidArgument, fmt.Sprintf("unknown operation %q", req.Op)}
	}
	sess, _ := h.sessions.Get(c.ID)
	if op.role != 0 {
		if sess.ID == "" {
			return nil, errUnauthenticated
		}
		if !sess.HasRole(op.role) {
			return nil, errPermissionDenied
		}
	}
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()
	return op.run(ctx, c, sess, req.Params)
}

// classify maps an operation error onto its wire code and message.
func classify(err error) (msgtypes.Code, string) {
	var oe *opError
	switch {
	case errors.As(err, &oe):
		return oe.code, oe.msg
	case models.IsValidation(err):
		return msgtypes.CodeInvalidArgument, err.Error()
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return msgtypes.CodeUnauthenticated, accounts.ErrInvalidCredentials.Error()
	case errors.Is(err, accounts.ErrAccountExists), errors.Is(err, accounts.ErrNameTaken):
		return msgtypes.CodeAlreadyExists, err.Error()
	case errors.Is(err, accounts.ErrNotFound):
		return msgtypes.CodeNotFound, err.Error()
	case errors.Is(err, accounts.ErrCharacterLimit):
		return msgtypes.CodeResourceExhausted, err.Error()
	case errors.Is(err, accounts.ErrDeathKnightLocked), errors.Is(err, accounts.ErrFactionMismatch):
		return msgtypes.CodeFailedPrecondition, err.Error()
	}
	return msgtypes.CodeInternal, "internal error"
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return &opError{msgtypes.CodeInvalidArgument, "missing params"}
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &opError{msgtypes.CodeInvalidArgument, "invalid params: " + err.Error()}
	}
	return nil
}

// ownAccount resolves the account an operation targets. Users may only target their own;
// admins may target any account when allowed.
func ownAccount(s sessions.Session, requested string, adminAnyAccount bool) (string, error) {
	switch {
	case requested == "", strings.EqualFold(requested, s.Account):
		return s.Account, nil
	case adminAnyAccount && s.HasRole(sessions.RoleAdmin):
		return requested, nil
	}
	return "", errPermissionDenied
}

func (h *Hub) login(ctx context.Context, c *Client, _ sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.LoginParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if !h.limiter.Allow(c.Peer) {
		metrics.LoginThrottled()
		logger.Account().WithFields(logrus.Fields{"peer": c.Peer, "account": p.AccountName}).Warn("login throttled")
		return nil, errThrottled
	}
	pd, admin, err := h.store.Login(ctx, p.AccountName, p.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			logger.Account().WithFields(logrus.Fields{"peer": c.Peer, "account": p.AccountName}).Info("login refused")
		}
		return nil, err
	}
	h.limiter.Reset(c.Peer)
	s := h.sessions.Open(c.ID, pd.AccountName, admin)
	metrics.SetSessions(h.sessions.Count())
	return msgtypes.LoginResult{Player: pd, Admin: admin, SessionID: s.ID}, nil
}

func (h *Hub) logout(_ context.Context, c *Client, _ sessions.Session, _ json.RawMessage) (any, error) {
	h.sessions.Close(c.ID)
	metrics.SetSessions(h.sessions.Count())
	return nil, nil
}

func (h *Hub) createAccount(ctx context.Context, _ *Client, s sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.CreateAccountParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Admin && !s.HasRole(sessions.RoleAdmin) {
		return nil, errPermissionDenied
	}
	return nil, h.store.CreateAccount(ctx, p.AccountName, p.Password, p.Admin)
}

func (h *Hub) accountCharacters(ctx context.Context, _ *Client, s sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.AccountParams
	if len(params) > 0 {
		if err := decode(params, &p); err != nil {
			return nil, err
		}
	}
	account, err := ownAccount(s, p.AccountName, true)
	if err != nil {
		return nil, err
	}
	chars, err := h.store.AccountCharacters(ctx, account)
	if err != nil {
		return nil, err
	}
	return msgtypes.CharactersResult{Characters: chars}, nil
}

func (h *Hub) allCharacters(ctx context.Context, _ *Client, _ sessions.Session, _ json.RawMessage) (any, error) {
	chars, err := h.store.AllCharacters(ctx)
	if err != nil {
		return nil, err
	}
	return msgtypes.CharactersResult{Characters: chars}, nil
}

func (h *Hub) addCharacter(ctx context.Context, _ *Client, s sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.AddCharacterParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	account, err := ownAccount(s, p.AccountName, false)
	if err != nil {
		return nil, err
	}
	return nil, h.store.AddCharacter(ctx, account, p.Character)
}

func (h *Hub) updateCharacters(ctx context.Context, _ *Client, s sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.UpdateCharactersParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	account, err := ownAccount(s, p.Player.AccountName, false)
	if err != nil {
		return nil, err
	}
	p.Player.AccountName = account
	if len(p.Player.Characters) > models.MaxCharacters {
		return nil, accounts.ErrCharacterLimit
	}
	return nil, h.store.UpdateCharacters(ctx, p.Player)
}

func (h *Hub) updateCharacterLevels(ctx context.Context, _ *Client, s sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.UpdateCharacterLevelsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := h.store.UpdateCharacterLevels(ctx, p.Characters); err != nil {
		return nil, err
	}
	logger.Admin().WithFields(logrus.Fields{"admin": s.Account, "count": len(p.Characters)}).Info("character levels edited")
	return nil, nil
}

func (h *Hub) deleteCharacter(ctx context.Context, _ *Client, s sessions.Session, params json.RawMessage) (any, error) {
	var p msgtypes.DeleteCharacterParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	account, err := ownAccount(s, p.AccountName, false)
	if err != nil {
		return nil, err
	}
	return nil, h.store.DeleteCharacter(ctx, account, p.CharacterName)
}
