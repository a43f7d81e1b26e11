package pionex

import (
	"strconv"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// intervalMap translates config timeframe strings to Pionex interval codes.
var intervalMap = map[string]string{
	"1m":  "1M",
	"5m":  "5M",
	"15m": "15M",
	"30m": "30M",
	"1h":  "60M",
	"4h":  "4H",
	"8h":  "8H",
	"12h": "12H",
	"1d":  "1D",
}

// apiEnvelope is the outer shape of every Pionex REST response.
type apiEnvelope struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// klineData is one OHLCV bar as returned by /api/v1/market/klines.
// Numeric fields arrive as strings.
type klineData struct {
	Time   int64  `json:"time"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

func (k klineData) toDomain() domain.Candle {
	return domain.Candle{
		// Pionex reports bar open time in milliseconds.
		Timestamp: k.Time / 1000,
		Open:      parseFloat(k.Open),
		High:      parseFloat(k.High),
		Low:       parseFloat(k.Low),
		Close:     parseFloat(k.Close),
		Volume:    parseFloat(k.Volume),
	}
}

// balanceData is one coin balance as returned by /api/v1/account/balances.
type balanceData struct {
	Coin   string `json:"coin"`
	Free   string `json:"free"`
	Frozen string `json:"frozen"`
}

// orderResult is the payload of a successful /api/v1/trade/order call.
type orderResult struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
}

// openOrderData is one resting order as returned by /api/v1/trade/openOrders.
type openOrderData struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Type    string `json:"type"`
	Size    string `json:"size"`
	Price   string `json:"price"`
	Status  string `json:"status"`
}

func (o openOrderData) toDomain() domain.Order {
	side := domain.OrderBuy
	if o.Side == "SELL" {
		side = domain.OrderSell
	}
	return domain.Order{
		ID:     strconv.FormatInt(o.OrderID, 10),
		Symbol: o.Symbol,
		Side:   side,
		Type:   o.Type,
		Size:   parseFloat(o.Size),
		Price:  parseFloat(o.Price),
		Status: o.Status,
	}
}

// wsCommand is the client-to-server subscription message.
type wsCommand struct {
	Op     string `json:"op"`
	Topic  string `json:"topic,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	// Timestamp echoes the server PING timestamp in PONG replies.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// wsEnvelope is the outer shape of every server-to-client message.
type wsEnvelope struct {
	Op        string `json:"op"`
	Type      string `json:"type"`
	Topic     string `json:"topic"`
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
}

// wsTrade is one trade entry on the TRADE topic.
type wsTrade struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"`
}

// wsDepth is the order-book payload on the DEPTH topic. Each level arrives as
// a [price, size] string pair, best price first.
type wsDepth struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func (d wsDepth) toDomain(symbol string, timestampMs int64) domain.DepthUpdate {
	return domain.DepthUpdate{
		Symbol: symbol,
		Bids:   parseLevels(d.Bids),
		Asks:   parseLevels(d.Asks),
		Time:   time.UnixMilli(timestampMs),
	}
}

func parseLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		levels = append(levels, domain.PriceLevel{
			Price: parseFloat(pair[0]),
			Size:  parseFloat(pair[1]),
		})
	}
	return levels
}

func (t wsTrade) toDomain() domain.TradeTick {
	return domain.TradeTick{
		Symbol: t.Symbol,
		Price:  parseFloat(t.Price),
		Size:   parseFloat(t.Size),
		Time:   time.UnixMilli(t.Timestamp),
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
