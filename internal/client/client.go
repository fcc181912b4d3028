package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"wowserver/internal/logger"
	"wowserver/internal/models"
	msgtypes "wowserver/internal/types"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	dialTimeout = 10 * time.Second
	writeWait   = 10 * time.Second
)

var ErrClosed = errors.New("connection closed")

// Error is a failure reported by the service. errors.Is matches on Code alone against
// the sentinels below.
type Error struct {
	Code    msgtypes.Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Code == e.Code
}

var (
	ErrInvalidArgument    = &Error{Code: msgtypes.CodeInvalidArgument}
	ErrUnauthenticated    = &Error{Code: msgtypes.CodeUnauthenticated}
	ErrPermissionDenied   = &Error{Code: msgtypes.CodePermissionDenied}
	ErrAlreadyExists      = &Error{Code: msgtypes.CodeAlreadyExists}
	ErrNotFound           = &Error{Code: msgtypes.CodeNotFound}
	ErrFailedPrecondition = &Error{Code: msgtypes.CodeFailedPrecondition}
	ErrResourceExhausted  = &Error{Code: msgtypes.CodeResourceExhausted}
	ErrInternal           = &Error{Code: msgtypes.CodeInternal}
)

// Client is a connection to the account service. Calls are safe for concurrent use.
type Client struct {
	// ID is the connection id the server assigned.
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex
	seq     atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan msgtypes.Response
	done    chan struct{}
	err     error
}

// Dial connects and waits for the server's connection ack.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(dialTimeout)
	}
	_ = conn.SetReadDeadline(deadline)
	var ack msgtypes.ConnectionAck
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read connection ack: %w", err)
	}
	if ack.Type != msgtypes.MsgTypeConnectionAck || ack.Code != 200 {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected connection ack %q code=%d", ack.Type, ack.Code)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{ID: ack.ClientID, conn: conn, pending: map[string]chan msgtypes.Response{}, done: make(chan struct{})}
	go c.readLoop()
	logger.Connection().WithFields(logrus.Fields{"client_id": c.ID, "url": url}).Info("connected to server")
	return c, nil
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var base struct {
			Type msgtypes.MsgType `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case msgtypes.MsgTypeHeartbeat:
			_ = c.write(msgtypes.Heartbeat{Type: msgtypes.MsgTypeHeartbeatResponse, ClientID: c.ID})
		case msgtypes.MsgTypeResponse:
			var resp msgtypes.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			delete(c.pending, resp.ID)
			c.mu.Unlock()
			if !ok {
				logger.Connection().WithField("id", resp.ID).Debug("response without caller")
				continue
			}
			ch <- resp
		}
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	c.pending = map[string]chan msgtypes.Response{}
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Call sends op with params and decodes the result into result, which may be nil.
func (c *Client) Call(ctx context.Context, op msgtypes.Op, params, result any) error {
	req := msgtypes.Request{Type: msgtypes.MsgTypeRequest, ID: strconv.FormatUint(c.seq.Add(1), 10), Op: op}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", op, err)
		}
		req.Params = b
	}

	ch := make(chan msgtypes.Response, 1)
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return ErrClosed
	default:
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.write(req); err != nil {
		c.forget(req.ID)
		return fmt.Errorf("send %s: %w", op, err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return &Error{Code: resp.Code, Message: resp.Error}
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", op, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(req.ID)
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close says goodbye to the server and waits for the read loop to stop.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed when the connection drops.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the read loop stopped, if it has.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Login(ctx context.Context, account, password string) (msgtypes.LoginResult, error) {
	var res msgtypes.LoginResult
	err := c.Call(ctx, msgtypes.OpLogin, msgtypes.LoginParams{AccountName: account, Password: password}, &res)
	return res, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Call(ctx, msgtypes.OpLogout, nil, nil)
}

func (c *Client) CreateAccount(ctx context.Context, account, password string, admin bool) error {
	return c.Call(ctx, msgtypes.OpCreateAccount, msgtypes.CreateAccountParams{AccountName: account, Password: password, Admin: admin}, nil)
}

func (c *Client) RetrieveAccountCharacters(ctx context.Context, account string) ([]models.Character, error) {
	var res msgtypes.CharactersResult
	err := c.Call(ctx, msgtypes.OpRetrieveAccountCharacters, msgtypes.AccountParams{AccountName: account}, &res)
	return res.Characters, err
}

func (c *Client) RetrieveAllCharacters(ctx context.Context) ([]models.Character, error) {
	var res msgtypes.CharactersResult
	err := c.Call(ctx, msgtypes.OpRetrieveAllCharacters, nil, &res)
	return res.Characters, err
}

func (c *Client) AddCharacterToAccount(ctx context.Context, account string, ch models.Character) error {
	return c.Call(ctx, msgtypes.OpAddCharacter, msgtypes.AddCharacterParams{AccountName: account, Character: ch}, nil)
}

func (c *Client) UpdateCharactersForPlayer(ctx context.Context, pd models.PlayerData) error {
	return c.Call(ctx, msgtypes.OpUpdateCharacters, msgtypes.UpdateCharactersParams{Player: pd}, nil)
}

func (c *Client) UpdateCharacterLevels(ctx context.Context, chars []models.Character) error {
	return c.Call(ctx, msgtypes.OpUpdateCharacterLevels, msgtypes.UpdateCharacterLevelsParams{Characters: chars}, nil)
}

func (c *Client) DeleteCharacterFromAccount(ctx context.Context, account, name string) error {
	return c.Call(ctx, msgtypes.OpDeleteCharacter, msgtypes.DeleteCharacterParams{AccountName: account, CharacterName: name}, nil)
}
