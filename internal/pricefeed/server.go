package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rcliao/stash-manager/internal/valuation"
)

const maxMessageSize = 8192

// Server answers feed requests from local price and supply sources.
type Server struct {
	prices valuation.PriceSource
	supply valuation.SupplySource
	logger *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer creates a Server. Either source may be nil, in which case its
// requests are answered with no_data.
func NewServer(prices valuation.PriceSource, supply valuation.SupplySource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		prices: prices,
		supply: supply,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("feed client read error", slog.String("error", err.Error()))
			}
			return
		}

		var req Message
		var resp Message
		if err := json.Unmarshal(msg, &req); err != nil {
			resp = Message{Type: TypeError, Error: CodeBadReq}
		} else {
			resp = s.handle(ctx, req)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, req Message) Message {
	switch req.Type {
	case TypePriceReq:
		resp := Message{Type: TypePrice, ID: req.ID, KindID: req.KindID}
		if s.prices == nil || req.KindID == "" {
			resp.Error = codeFor(valuation.ErrNoData)
			return resp
		}
		v, err := s.prices.FetchPrice(ctx, req.KindID)
		if err != nil {
			resp.Error = codeFor(err)
			return resp
		}
		resp.OK = true
		resp.Min = &v
		return resp

	case TypeSupplyReq:
		resp := Message{Type: TypeSupply, ID: req.ID, TraderID: req.TraderID}
		if s.supply == nil || req.TraderID == "" {
			resp.Error = codeFor(valuation.ErrNoData)
			return resp
		}
		data, err := s.supply.FetchSupplyData(ctx, req.TraderID)
		if err != nil {
			resp.Error = codeFor(err)
			return resp
		}
		resp.OK = true
		resp.Prices = data.Prices
		return resp

	default:
		return Message{Type: TypeError, ID: req.ID, Error: CodeBadReq}
	}
}

func codeFor(err error) string {
	if errors.Is(err, valuation.ErrNoData) {
		return CodeNoData
	}
	return CodeInternal
}
