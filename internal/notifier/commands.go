package notifier

import (
	"context"
	"errors"
	"strings"

	"DipSentinel/internal/analysis"
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/model"
	"DipSentinel/internal/watchlist"
)

// Commands answers the chat commands.
type Commands struct {
	Store    watchlist.Store
	Analyzer *analysis.Analyzer
}

// Handle implements CommandHandler.
func (c *Commands) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	// Group chats append the bot name: /check@DipSentinelBot
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch cmd {
	case "/list":
		entries, err := c.Store.Load(ctx)
		if err != nil {
			return "⚠️ 관심 종목을 불러오지 못했습니다: " + err.Error()
		}
		return FormatWatchlist(entries)
	case "/check":
		if len(fields) < 2 {
			return "사용법: /check SYMBOL [KR|US]"
		}
		return c.check(ctx, fields[1], fields[2:])
	case "/help", "/start":
		return FormatHelp()
	}
	return ""
}

func (c *Commands) check(ctx context.Context, symbol string, rest []string) string {
	symbol = strings.ToUpper(symbol)
	market, name := c.lookup(ctx, symbol)
	if len(rest) > 0 {
		m, err := model.ParseMarket(rest[0])
		if err != nil {
			return "⚠️ " + err.Error()
		}
		market = m
	}

	r, err := c.Analyzer.Analyze(ctx, symbol, market)
	switch {
	case errors.Is(err, calculator.ErrInsufficientHistory):
		return "⚠️ " + symbol + ": 분석에 필요한 가격 이력이 부족합니다."
	case errors.Is(err, collector.ErrNoData):
		return "⚠️ " + symbol + ": 시세 데이터를 가져올 수 없습니다."
	case err != nil:
		return "⚠️ " + err.Error()
	}
	return FormatReport(r, name)
}

// lookup returns the stored market and name, or a guess for unlisted symbols.
func (c *Commands) lookup(ctx context.Context, symbol string) (model.Market, string) {
	if c.Store != nil {
		if entries, err := c.Store.Load(ctx); err == nil {
			for _, e := range entries {
				if e.Symbol == symbol {
					return e.Market, e.Name
				}
			}
		}
	}
	return model.InferMarket(symbol), symbol
}
