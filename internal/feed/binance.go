package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"hftsim/internal/types"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// Binance streams public trades over websocket and converts them into
// feed events for a live price-action observer.
type Binance struct {
	wss *ws.WebSocket
}

// NewBinance creates a Binance public stream client.
func NewBinance(ctx context.Context) *Binance {
	return &Binance{
		wss: ws.New(ctx, _binanceBaseWsUrl),
	}
}

// Close closes the websocket.
func (repo *Binance) Close() {
	repo.wss.Close()
}

// StartWebsocket starts the websocket session.
func (repo *Binance) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (binanceSubscribeResponse, bool) {
	var resp binanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeTrade subscribes the 'Trade Streams' topic for a symbol.
func (repo *Binance) SubscribeTrade(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@trade", strings.ToLower(symbol)),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceTrade struct {
	EventType    string          `json:"e"`
	EventTime    int64           `json:"E"`
	Symbol       string          `json:"s"`
	TradeID      int64           `json:"t"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	TradeTime    int64           `json:"T"`
	IsBuyerMaker bool            `json:"m"`
}

// ObserveTrade dispatches the trade stream as feed events. Trade
// timestamps are in nanoseconds; the buyer being the maker means the
// aggressor sold.
func (repo *Binance) ObserveTrade(ctx context.Context, handler func(ev types.Event)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[binanceTrade](m)
				if !ok || resp.EventType != "trade" {
					continue
				}

				ev, err := resp.event()
				if err != nil {
					logs.Errorf("drop trade, err: %+v", err)
					continue
				}

				handler(ev)
			}
		}
	}()

	return cancel
}

func (t binanceTrade) event() (types.Event, error) {
	px, err := strconv.ParseFloat(t.Price.String(), 64)
	if err != nil {
		return types.Event{}, errors.Wrap(err, "parse price").With("price", t.Price)
	}
	qty, err := strconv.ParseFloat(t.Quantity.String(), 64)
	if err != nil {
		return types.Event{}, errors.Wrap(err, "parse quantity").With("quantity", t.Quantity)
	}

	flag := types.ExchBuyTradeEvent | types.LocalBuyTradeEvent
	if t.IsBuyerMaker {
		flag = types.ExchSellTradeEvent | types.LocalSellTradeEvent
	}

	ts := t.TradeTime * 1_000_000
	return types.Event{
		Ev:      flag,
		ExchTs:  ts,
		LocalTs: ts,
		Px:      px,
		Qty:     qty,
	}, nil
}
