package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"DipSentinel/internal/analysis"
	"DipSentinel/internal/model"
	"DipSentinel/internal/strategy"
	"DipSentinel/internal/watchlist"
)

// FormatAmount renders v with thousands separators and the market currency.
func FormatAmount(v float64, m model.Market) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return sign + m.CurrencySymbol() + humanize.CommafWithDigits(v, m.AmountDigits())
}

// Alert is the content of one threshold notification.
type Alert struct {
	Symbol string
	Name   string
	Market model.Market
	Price  float64
	Change float64
	Tier   model.Tier
	Levels model.SigmaLevels
	Window model.Window
}

// FormatAlert formats a threshold breach.
func FormatAlert(a Alert) string {
	info := strategy.Info(a.Tier)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s (%s)\n\n", info.Emoji, info.Label, html.EscapeString(a.Name), a.Symbol))
	b.WriteString(fmt.Sprintf("현재가: %s\n", FormatAmount(a.Price, a.Market)))
	b.WriteString(fmt.Sprintf("전일 대비: %+.2f%%\n", a.Change))
	b.WriteString(fmt.Sprintf("기준선(%dσ): %.2f%%\n", info.K, strategy.Level(a.Levels, a.Tier)))
	b.WriteString(fmt.Sprintf("평균 %.2f%% | 표준편차 %.2f%%", a.Levels.Mean, a.Levels.Std))
	if a.Window == model.WindowYear {
		b.WriteString(" (최근 1년)")
	}
	b.WriteString("\n")
	return b.String()
}

// FormatReport formats an analysis for a chat reply.
func FormatReport(r *analysis.Report, name string) string {
	var b strings.Builder
	if name == "" {
		name = r.Symbol
	}
	s := r.Stats

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> (%s) | %s\n\n", html.EscapeString(name), r.Symbol, r.End.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("종가: %s (%+.2f%%)\n", FormatAmount(s.LastClose, r.Market), s.LastChange))
	b.WriteString(fmt.Sprintf("상태: %s %s\n\n", strategy.Info(r.Tier).Emoji, strategy.Info(r.Tier).Label))

	writeLevels(&b, "전체 기간", s.Full)
	yearTitle := "최근 1년"
	if s.YearFallback {
		yearTitle += " (이력 부족, 전체 기간 사용)"
	}
	writeLevels(&b, yearTitle, s.Year)

	if r.Range.High > 0 {
		b.WriteString(fmt.Sprintf("\n52주 고가 %s / 저가 %s (고점 대비 %.1f%%)\n",
			FormatAmount(r.Range.High, r.Market), FormatAmount(r.Range.Low, r.Market), r.Range.FromHighPct))
	}
	if r.MA200 > 0 {
		b.WriteString(fmt.Sprintf("MA200: %s (이격 %+.1f%%)\n", FormatAmount(r.MA200, r.Market), r.MADeviation))
	}
	b.WriteString(fmt.Sprintf("RSI(14): %.1f\n", r.RSI))
	return b.String()
}

func writeLevels(b *strings.Builder, title string, l model.SigmaLevels) {
	b.WriteString(fmt.Sprintf("<b>%s</b> 평균 %.2f%% | σ %.2f%%\n", title, l.Mean, l.Std))
	b.WriteString(fmt.Sprintf("  1σ %.2f%% · 2σ %.2f%% · 3σ %.2f%%\n", l.Sigma1, l.Sigma2, l.Sigma3))
}

// FormatWatchlist lists the monitored symbols.
func FormatWatchlist(entries []watchlist.Entry) string {
	if len(entries) == 0 {
		return "📋 관심 종목이 없습니다."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>관심 종목</b> (%d)\n\n", len(entries)))
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("• %s (%s) %s\n", html.EscapeString(e.Name), e.Symbol, e.Market))
	}
	return b.String()
}

// FormatDCAReminder reminds the user of this month's periodic purchase.
func FormatDCAReminder(entries []watchlist.Entry, perPeriod float64, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>정기 매수일</b> | %s\n\n", now.Format("2006-01")))
	if len(entries) == 0 {
		b.WriteString("관심 종목이 없습니다.\n")
		return b.String()
	}
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("• %s (%s): %s\n", html.EscapeString(e.Name), e.Symbol, FormatAmount(perPeriod, e.Market)))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "🤖 <b>DipSentinel</b>\n\n" +
		"/list - 관심 종목 목록\n" +
		"/check SYMBOL [KR|US] - 시그마 분석\n" +
		"/help - 도움말\n"
}
