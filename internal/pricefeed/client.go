package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/rcliao/stash-manager/internal/valuation"
)

const writeWait = 5 * time.Second

// ErrClosed is returned for requests on a closed or failed connection.
var ErrClosed = errors.New("price feed closed")

// Client multiplexes price requests over one WebSocket connection.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Message
	err     error

	closeOnce sync.Once
	done      chan struct{}
}

var (
	_ valuation.PriceSource  = (*Client)(nil)
	_ valuation.SupplySource = (*Client)(nil)
)

// Dial connects to a feed at url and starts the read loop.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial price feed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// FetchPrice asks the feed for a kind's minimum market price.
func (c *Client) FetchPrice(ctx context.Context, kindID string) (float64, error) {
	resp, err := c.request(ctx, Message{Type: TypePriceReq, KindID: kindID})
	if err != nil {
		return 0, err
	}
	if err := responseErr(resp); err != nil {
		return 0, fmt.Errorf("price %s: %w", kindID, err)
	}
	if resp.Min == nil || math.IsNaN(*resp.Min) || *resp.Min < 0 {
		return 0, fmt.Errorf("price %s: %w", kindID, valuation.ErrNoData)
	}
	return *resp.Min, nil
}

// FetchSupplyData asks the feed what a trader pays.
func (c *Client) FetchSupplyData(ctx context.Context, traderID string) (valuation.SupplyData, error) {
	resp, err := c.request(ctx, Message{Type: TypeSupplyReq, TraderID: traderID})
	if err != nil {
		return valuation.SupplyData{}, err
	}
	if err := responseErr(resp); err != nil {
		return valuation.SupplyData{}, fmt.Errorf("supply %s: %w", traderID, err)
	}
	return valuation.SupplyData{TraderID: traderID, Prices: resp.Prices, FetchedAt: time.Now()}, nil
}

func responseErr(m Message) error {
	if m.OK {
		return nil
	}
	if m.Error == CodeNoData {
		return valuation.ErrNoData
	}
	if m.Error == "" {
		return errors.New("request failed")
	}
	return errors.New(m.Error)
}

func (c *Client) request(ctx context.Context, req Message) (Message, error) {
	req.ID = ulid.Make().String()
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Message{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer c.forget(req.ID)

	b, err := json.Marshal(req)
	if err != nil {
		return Message{}, err
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, b)
	c.writeMu.Unlock()
	if err != nil {
		return Message{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.done:
		return Message{}, c.closedErr()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var m Message
		if err := json.Unmarshal(msg, &m); err != nil {
			c.logger.Warn("bad price feed frame", slog.String("error", err.Error()))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[m.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("unmatched price feed response", slog.String("id", m.ID), slog.String("type", m.Type))
			continue
		}
		select {
		case ch <- m:
		default:
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Warn("price feed connection lost", slog.String("error", err.Error()))
	}
	c.err = fmt.Errorf("%w: %v", ErrClosed, err)
}

// Close shuts the connection and fails outstanding requests.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}
