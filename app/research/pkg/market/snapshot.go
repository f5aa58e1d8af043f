package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Snapshot 行情快照，作为研报的数据底稿
type Snapshot struct {
	Quote   *Quote
	History []Candle
	SMA20   float64
	SMA60   float64
	RSI14   float64
	High    float64 // 区间最高收盘价
	Low     float64 // 区间最低收盘价
	Trend   string
}

// ParseStockCode 拆分 "06682.HK" 为代码与市场
func ParseStockCode(s string) (code, mkt string) {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "."); idx > 0 {
		return s[:idx], strings.ToUpper(s[idx+1:])
	}
	return s, ""
}

// ToYahooSymbol 转换为 Yahoo 代码：港股补齐 4 位，沪市 .SS，深市 .SZ，其余原样
func ToYahooSymbol(code, mkt string) string {
	switch strings.ToUpper(mkt) {
	case "HK":
		trimmed := strings.TrimLeft(code, "0")
		if n, err := strconv.Atoi(trimmed); err == nil {
			return fmt.Sprintf("%04d.HK", n)
		}
		return code + ".HK"
	case "SH", "SS":
		return code + ".SS"
	case "SZ":
		return code + ".SZ"
	default:
		return code
	}
}

// TakeSnapshot 汇总三个月日线和技术指标
func TakeSnapshot(ctx context.Context, p Provider, symbol string) (*Snapshot, error) {
	quote, err := p.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	history, err := p.History(ctx, symbol, "1d", "3mo")
	if err != nil {
		return nil, err
	}

	closes := make([]float64, 0, len(history))
	s := &Snapshot{Quote: quote, History: history}
	for i, c := range history {
		closes = append(closes, c.Close)
		if i == 0 || c.Close > s.High {
			s.High = c.Close
		}
		if i == 0 || c.Close < s.Low {
			s.Low = c.Close
		}
	}
	s.SMA20 = SMA(closes, 20)
	s.SMA60 = SMA(closes, 60)
	s.RSI14 = RSI(closes, 14)

	switch {
	case s.SMA20 == 0 || s.SMA60 == 0:
		s.Trend = "数据不足"
	case quote.Price > s.SMA20 && s.SMA20 > s.SMA60:
		s.Trend = "上升"
	case quote.Price < s.SMA20 && s.SMA20 < s.SMA60:
		s.Trend = "下降"
	default:
		s.Trend = "震荡"
	}
	return s, nil
}

// SMA 简单移动平均，数据不足返回 0
func SMA(data []float64, period int) float64 {
	if period <= 0 || len(data) < period {
		return 0
	}
	sum := 0.0
	for _, v := range data[len(data)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// RSI 相对强弱指标，数据不足返回 50
func RSI(data []float64, period int) float64 {
	if period <= 0 || len(data) < period+1 {
		return 50
	}
	gains, losses := 0.0, 0.0
	for i := len(data) - period; i < len(data); i++ {
		change := data[i] - data[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// ToMarkdown 渲染为可供 LLM 引用的 Markdown
func (s *Snapshot) ToMarkdown(name string) string {
	q := s.Quote
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (%s) 行情快照\n\n", name, q.Symbol)
	sb.WriteString("| 指标 | 数值 |\n|---|---|\n")
	fmt.Fprintf(&sb, "| 最新价 | %.3f %s |\n", q.Price, q.Currency)
	fmt.Fprintf(&sb, "| 涨跌 | %+.3f (%+.2f%%) |\n", q.Change, q.ChangePct)
	if q.DayHigh > 0 {
		fmt.Fprintf(&sb, "| 日内区间 | %.3f - %.3f |\n", q.DayLow, q.DayHigh)
	}
	if q.YearHigh > 0 {
		fmt.Fprintf(&sb, "| 52 周区间 | %.3f - %.3f |\n", q.YearLow, q.YearHigh)
	}
	if q.Volume > 0 {
		fmt.Fprintf(&sb, "| 成交量 | %d |\n", q.Volume)
	}
	fmt.Fprintf(&sb, "| 三个月收盘区间 | %.3f - %.3f |\n", s.Low, s.High)
	fmt.Fprintf(&sb, "| SMA20 | %.3f |\n", s.SMA20)
	fmt.Fprintf(&sb, "| SMA60 | %.3f |\n", s.SMA60)
	fmt.Fprintf(&sb, "| RSI14 | %.1f |\n", s.RSI14)
	fmt.Fprintf(&sb, "| 趋势 | %s |\n", s.Trend)
	if !q.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "\n数据时间: %s (Yahoo Finance)\n", q.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return sb.String()
}
