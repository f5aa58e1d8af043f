package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrNoData 行情接口没有返回数据
var ErrNoData = errors.New("market data not found")

// Provider 行情数据源
type Provider interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
	History(ctx context.Context, symbol, interval, rangeStr string) ([]Candle, error)
}

// Quote 实时行情
type Quote struct {
	Symbol    string
	Currency  string
	Exchange  string
	Price     float64
	PrevClose float64
	Change    float64
	ChangePct float64
	DayHigh   float64
	DayLow    float64
	Volume    int64
	YearHigh  float64
	YearLow   float64
	UpdatedAt time.Time
}

// Candle 日 K 线
type Candle struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// YahooChartResponse Yahoo chart v8 响应
type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string  `json:"symbol"`
				Currency             string  `json:"currency"`
				ExchangeName         string  `json:"exchangeName"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				PreviousClose        float64 `json:"previousClose"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				RegularMarketTime    int64   `json:"regularMarketTime"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  int64   `json:"regularMarketVolume"`
				FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooClient Yahoo Finance chart API 客户端
type YahooClient struct {
	client *resty.Client
}

var _ Provider = (*YahooClient)(nil)

// NewYahooClient 创建客户端，timeout 单位秒
func NewYahooClient(baseURL string, timeout int) *YahooClient {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 10 * time.Second
	}
	return &YahooClient{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(t).
			SetHeader("User-Agent", userAgent),
	}
}

func (c *YahooClient) chart(ctx context.Context, symbol, interval, rangeStr string) (*YahooChartResponse, error) {
	var out YahooChartResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"interval": interval, "range": rangeStr}).
		SetResult(&out).
		SetError(&out).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo chart request: %w", err)
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart api error: %s %s: %w", out.Chart.Error.Code, out.Chart.Error.Description, ErrNoData)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yahoo chart api error: %d", resp.StatusCode())
	}
	if len(out.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return &out, nil
}

// Quote 获取最新行情
func (c *YahooClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	out, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	meta := out.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 && meta.PreviousClose == 0 {
		return nil, fmt.Errorf("invalid price data (0.0) for %s: %w", symbol, ErrNoData)
	}
	prevClose := meta.PreviousClose
	if prevClose == 0 {
		prevClose = meta.ChartPreviousClose
	}
	change := meta.RegularMarketPrice - prevClose
	changePct := 0.0
	if prevClose != 0 {
		changePct = change / prevClose * 100
	}

	return &Quote{
		Symbol:    meta.Symbol,
		Currency:  meta.Currency,
		Exchange:  meta.ExchangeName,
		Price:     meta.RegularMarketPrice,
		PrevClose: prevClose,
		Change:    change,
		ChangePct: changePct,
		DayHigh:   meta.RegularMarketDayHigh,
		DayLow:    meta.RegularMarketDayLow,
		Volume:    meta.RegularMarketVolume,
		YearHigh:  meta.FiftyTwoWeekHigh,
		YearLow:   meta.FiftyTwoWeekLow,
		UpdatedAt: time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

// History 获取历史 K 线，跳过停牌等空数据
func (c *YahooClient) History(ctx context.Context, symbol, interval, rangeStr string) ([]Candle, error) {
	out, err := c.chart(ctx, symbol, interval, rangeStr)
	if err != nil {
		return nil, err
	}
	result := out.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data for %s: %w", symbol, ErrNoData)
	}
	q := result.Indicators.Quote[0]

	at := func(s []float64, i int) float64 {
		if i < len(s) {
			return s[i]
		}
		return 0
	}

	var candles []Candle
	for i, ts := range result.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice == 0 {
			continue
		}
		candles = append(candles, Candle{
			Date:   time.Unix(ts, 0).UTC().Format(time.DateOnly),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  closePrice,
			Volume: at(q.Volume, i),
		})
	}
	return candles, nil
}
