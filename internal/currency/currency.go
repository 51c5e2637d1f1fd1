// Package currency looks up TWD exchange rates and 90-day rate histories
// from public exchange-rate APIs, with short-lived caching.
package currency

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"voicewatch/internal/cache"
)

const (
	// BaseCurrency is what every rate is quoted against.
	BaseCurrency = "TWD"

	// HistoryDays is the default history window.
	HistoryDays = 90

	cacheTTL = 5 * time.Minute

	defaultLatestURL  = "https://api.exchangerate-api.com/v4/latest"
	defaultHistoryURL = "https://api.exchangerate.host/timeseries"
)

// ErrUnavailable indicates the upstream API could not produce a usable rate.
var ErrUnavailable = errors.New("exchange rate unavailable")

// Info describes one supported currency.
type Info struct {
	Code     string
	Name     string
	FullName string
	Emoji    string
}

// Group is a named cluster of currencies shown together in the select menu.
type Group struct {
	Name       string
	Currencies []Info
}

// Groups lists the supported currencies in display order.
var Groups = []Group{
	{
		Name: "常用貨幣",
		Currencies: []Info{
			{Code: "USD", Name: "美元", FullName: "美國美元", Emoji: "🇺🇸"},
			{Code: "JPY", Name: "日圓", FullName: "日本日圓", Emoji: "🇯🇵"},
			{Code: "EUR", Name: "歐元", FullName: "歐盟歐元", Emoji: "🇪🇺"},
			{Code: "CNY", Name: "人民幣", FullName: "中國人民幣", Emoji: "🇨🇳"},
		},
	},
	{
		Name: "亞洲貨幣",
		Currencies: []Info{
			{Code: "HKD", Name: "港幣", FullName: "香港港幣", Emoji: "🇭🇰"},
			{Code: "KRW", Name: "韓元", FullName: "韓國韓元", Emoji: "🇰🇷"},
			{Code: "SGD", Name: "新加坡幣", FullName: "新加坡幣", Emoji: "🇸🇬"},
			{Code: "THB", Name: "泰銖", FullName: "泰國泰銖", Emoji: "🇹🇭"},
			{Code: "VND", Name: "越南盾", FullName: "越南越南盾", Emoji: "🇻🇳"},
			{Code: "MYR", Name: "馬來幣", FullName: "馬來西亞令吉", Emoji: "🇲🇾"},
			{Code: "PHP", Name: "披索", FullName: "菲律賓披索", Emoji: "🇵🇭"},
			{Code: "IDR", Name: "印尼盾", FullName: "印尼盾", Emoji: "🇮🇩"},
		},
	},
	{
		Name: "歐美貨幣",
		Currencies: []Info{
			{Code: "GBP", Name: "英鎊", FullName: "英國英鎊", Emoji: "🇬🇧"},
			{Code: "AUD", Name: "澳幣", FullName: "澳洲澳幣", Emoji: "🇦🇺"},
			{Code: "CAD", Name: "加幣", FullName: "加拿大加幣", Emoji: "🇨🇦"},
			{Code: "CHF", Name: "法郎", FullName: "瑞士法郎", Emoji: "🇨🇭"},
		},
	},
}

// Lookup finds a currency's metadata by code.
func Lookup(code string) (Info, bool) {
	for _, group := range Groups {
		for _, info := range group.Currencies {
			if info.Code == code {
				return info, true
			}
		}
	}
	return Info{}, false
}

// Rate is one live quote: how many TWD one unit of the currency buys.
type Rate struct {
	Currency    string
	Rate        float64
	InverseRate float64
	UpdatedAt   time.Time
}

// Point is one day of rate history.
type Point struct {
	Date string
	Rate float64
}

// Service fetches rates with retrying HTTP and a 5-minute cache per key.
type Service struct {
	client    *retryablehttp.Client
	logger    *slog.Logger
	rates     *cache.TTL[Rate]
	histories *cache.TTL[[]Point]
	now       func() time.Time

	// Endpoint bases, overridable in tests.
	latestURL  string
	historyURL string
}

// NewService creates a currency service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil // suppress retryablehttp's default logging
	return &Service{
		client:     client,
		logger:     logger,
		rates:      cache.NewTTL[Rate](cacheTTL),
		histories:  cache.NewTTL[[]Point](cacheTTL),
		now:        time.Now,
		latestURL:  defaultLatestURL,
		historyURL: defaultHistoryURL,
	}
}

// Close releases idle connections.
func (s *Service) Close() {
	s.client.HTTPClient.CloseIdleConnections()
}

// GetCurrentRate returns the live TWD quote for a currency, cached for five
// minutes. forceRefresh drops the cached entry first.
func (s *Service) GetCurrentRate(code string, forceRefresh bool) (Rate, error) {
	key := "rate_" + code
	if forceRefresh {
		s.rates.Delete(key)
	}
	return s.rates.GetOrFetch(key, func() (Rate, error) {
		return s.fetchCurrentRate(code)
	})
}

func (s *Service) fetchCurrentRate(code string) (Rate, error) {
	resp, err := s.client.Get(fmt.Sprintf("%s/%s", s.latestURL, code))
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return Rate{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	twd, ok := payload.Rates[BaseCurrency]
	if !ok || twd == 0 {
		return Rate{}, fmt.Errorf("%w: no %s rate for %s", ErrUnavailable, BaseCurrency, code)
	}
	return Rate{
		Currency:    code,
		Rate:        twd,
		InverseRate: 1 / twd,
		UpdatedAt:   s.now(),
	}, nil
}

// GetHistoryRates returns up to days of daily TWD quotes, oldest first.
// A direct base=code query is tried first, then the inverse base. An empty
// slice (never an error) is returned when neither yields two data points.
func (s *Service) GetHistoryRates(code string, days int) []Point {
	key := fmt.Sprintf("history_%s_%d", code, days)
	history, err := s.histories.GetOrFetch(key, func() ([]Point, error) {
		history := s.fetchHistory(code, days)
		if len(history) < 2 {
			return nil, fmt.Errorf("%w: no history for %s", ErrUnavailable, code)
		}
		return history, nil
	})
	if err != nil {
		s.logger.Warn("history fetch failed", "currency", code, "error", err)
		return nil
	}
	return history
}

func (s *Service) fetchHistory(code string, days int) []Point {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	candidates := []struct {
		base, symbol string
		inverse      bool
	}{
		{base: code, symbol: BaseCurrency, inverse: false},
		{base: BaseCurrency, symbol: code, inverse: true},
	}

	for _, c := range candidates {
		query := url.Values{}
		query.Set("base", c.base)
		query.Set("symbols", c.symbol)
		query.Set("start_date", start.Format("2006-01-02"))
		query.Set("end_date", end.Format("2006-01-02"))

		points, err := s.fetchTimeseries(s.historyURL+"?"+query.Encode(), c.symbol, c.inverse)
		if err != nil {
			s.logger.Debug("timeseries query failed", "base", c.base, "error", err)
			continue
		}
		if len(points) > 0 {
			return points
		}
	}
	return nil
}

func (s *Service) fetchTimeseries(requestURL, symbol string, inverse bool) ([]Point, error) {
	resp, err := s.client.Get(requestURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Success bool                          `json:"success"`
		Rates   map[string]map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, errors.New("upstream reported failure")
	}

	dates := make([]string, 0, len(payload.Rates))
	for date := range payload.Rates {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var points []Point
	for _, date := range dates {
		value := payload.Rates[date][symbol]
		if value == 0 {
			continue
		}
		if inverse {
			value = 1 / value
		}
		points = append(points, Point{Date: date, Rate: value})
	}
	return points, nil
}

// MonthlyAverages condenses daily history into per-month averages, keeping
// the most recent months.
func MonthlyAverages(history []Point, months int) []Point {
	if len(history) == 0 {
		return nil
	}
	var order []string
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range history {
		if len(p.Date) < 7 {
			continue
		}
		month := p.Date[:7]
		if counts[month] == 0 {
			order = append(order, month)
		}
		sums[month] += p.Rate
		counts[month]++
	}

	averaged := make([]Point, 0, len(order))
	for _, month := range order {
		averaged = append(averaged, Point{Date: month, Rate: sums[month] / float64(counts[month])})
	}
	if len(averaged) > months {
		averaged = averaged[len(averaged)-months:]
	}
	return averaged
}

// ChangePercent returns the percentage change between the first and last
// points of a history, or 0 when the history is too short.
func ChangePercent(history []Point) float64 {
	if len(history) < 2 || history[0].Rate == 0 {
		return 0
	}
	first := history[0].Rate
	last := history[len(history)-1].Rate
	return (last - first) / first * 100
}
