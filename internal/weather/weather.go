// Package weather fetches Taiwan forecasts and live observations from the
// Central Weather Administration open-data API.
//
// Two datastores are used: F-D0047-089 (3-hourly township forecasts) and
// O-A0003-001 (10-minute station observations).
package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"voicewatch/internal/cache"
)

const (
	defaultBaseURL      = "https://opendata.cwa.gov.tw/api/v1/rest/datastore"
	forecastDatastore   = "F-D0047-089"
	observationDatastore = "O-A0003-001"

	forecastCacheTTL    = 10 * time.Minute
	observationCacheTTL = 2 * time.Minute

	// ForecastSlots caps how many 3-hour slots a report carries.
	ForecastSlots = 8
)

// ErrCityNotFound indicates the query matched none of the supported cities.
var ErrCityNotFound = errors.New("city not found")

// ErrUnavailable indicates the CWA API could not be reached or parsed.
var ErrUnavailable = errors.New("weather data unavailable")

// Cities lists the 22 Taiwan counties and cities the API covers.
var Cities = []string{
	"宜蘭縣", "桃園市", "新竹縣", "苗栗縣", "彰化縣", "南投縣",
	"雲林縣", "嘉義縣", "屏東縣", "臺東縣", "花蓮縣", "澎湖縣",
	"基隆市", "新竹市", "嘉義市", "臺北市", "高雄市", "新北市",
	"臺中市", "臺南市", "連江縣", "金門縣",
}

// HourlyForecast is one 3-hour forecast slot.
type HourlyForecast struct {
	TimeLabel   string
	Weather     string
	Emoji       string
	Temperature float64
	FeelsLike   *float64
	Humidity    *int
	RainProb    int
}

// Observation is a live station reading.
type Observation struct {
	StationName string
	Temperature float64
	Humidity    *float64
	WindSpeed   *float64
	WeatherDesc string
	ObservedAt  time.Time
}

// Report is a complete city weather report.
type Report struct {
	Location    string
	Observation *Observation
	Forecasts   []HourlyForecast
}

// Service fetches and caches CWA data.
type Service struct {
	client  *retryablehttp.Client
	logger  *slog.Logger
	apiKey  string
	baseURL string

	forecastCache    *cache.TTL[forecastRecords]
	observationCache *cache.TTL[[]stationRecord]
	timezone         *time.Location
	now              func() time.Time
}

// NewService creates a weather service authorized by the CWA API key.
func NewService(apiKey string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 20 * time.Second
	client.Logger = nil

	tz, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		tz = time.FixedZone("UTC+8", 8*3600)
	}
	return &Service{
		client:           client,
		logger:           logger,
		apiKey:           apiKey,
		baseURL:          defaultBaseURL,
		forecastCache:    cache.NewTTL[forecastRecords](forecastCacheTTL),
		observationCache: cache.NewTTL[[]stationRecord](observationCacheTTL),
		timezone:         tz,
		now:              time.Now,
	}
}

// Close releases idle connections.
func (s *Service) Close() {
	s.client.HTTPClient.CloseIdleConnections()
}

// NormalizeCity maps the 台 variant to the official 臺 spelling.
func NormalizeCity(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "台", "臺")
}

// MatchCity resolves a user query to one of the supported cities: exact
// match first, then substring in either direction.
func MatchCity(query string) (string, bool) {
	normalized := NormalizeCity(query)
	if normalized == "" {
		return "", false
	}
	for _, city := range Cities {
		if normalized == city {
			return city, true
		}
	}
	for _, city := range Cities {
		if strings.Contains(city, normalized) || strings.Contains(normalized, city) {
			return city, true
		}
	}
	return "", false
}

// FetchWeather builds a full report for a city. Observation failures
// degrade to a forecast-only report; an unmatched city is an error.
func (s *Service) FetchWeather(location string) (*Report, error) {
	city, ok := MatchCity(location)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, location)
	}

	forecasts, err := s.fetchForecasts(city)
	if err != nil {
		s.logger.Error("forecast fetch failed", "city", city, "error", err)
		forecasts = nil
	}

	observation, err := s.fetchObservation(city)
	if err != nil {
		s.logger.Warn("observation fetch failed", "city", city, "error", err)
		observation = nil
	}

	return &Report{
		Location:    city,
		Observation: observation,
		Forecasts:   forecasts,
	}, nil
}

func (s *Service) fetchForecasts(city string) ([]HourlyForecast, error) {
	records, err := s.forecastCache.GetOrFetch("forecast", func() (forecastRecords, error) {
		var payload struct {
			Records forecastRecords `json:"records"`
		}
		if err := s.getJSON(forecastDatastore, &payload); err != nil {
			return forecastRecords{}, err
		}
		return payload.Records, nil
	})
	if err != nil {
		return nil, err
	}

	normalized := NormalizeCity(city)
	for _, group := range records.Locations {
		for _, loc := range group.Location {
			if NormalizeCity(loc.LocationName) == normalized {
				return s.parseForecasts(loc), nil
			}
		}
	}
	s.logger.Warn("city missing from forecast data", "city", city)
	return nil, nil
}

func (s *Service) parseForecasts(loc forecastLocation) []HourlyForecast {
	elements := make(map[string][]forecastTime, len(loc.WeatherElement))
	for _, elem := range loc.WeatherElement {
		elements[elem.ElementName] = elem.Time
	}

	now := s.now().In(s.timezone)
	wxTimes := elements["天氣現象"]
	tTimes := elements["溫度"]
	atTimes := elements["體感溫度"]
	rhTimes := elements["相對濕度"]
	popTimes := elements["3小時降雨機率"]

	var forecasts []HourlyForecast
	for idx, wx := range wxTimes {
		start, err := time.Parse(time.RFC3339, wx.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, wx.EndTime)
		if err != nil {
			continue
		}
		if !end.After(now) {
			continue
		}

		weather := elementValue(wxTimes, idx, "Weather")
		if weather == "" {
			weather = "-"
		}

		forecast := HourlyForecast{
			TimeLabel: formatTimeLabel(now, start.In(s.timezone)),
			Weather:   weather,
			Emoji:     EmojiFor(weather),
			RainProb:  parseIntValue(elementValue(popTimes, idx, "ProbabilityOfPrecipitation")),
		}
		if v, err := strconv.ParseFloat(elementValue(tTimes, idx, "Temperature"), 64); err == nil {
			forecast.Temperature = v
		}
		if v, err := strconv.ParseFloat(elementValue(atTimes, idx, "ApparentTemperature"), 64); err == nil {
			forecast.FeelsLike = &v
		}
		if v := parseIntValue(elementValue(rhTimes, idx, "RelativeHumidity")); v > 0 {
			forecast.Humidity = &v
		}
		forecasts = append(forecasts, forecast)
	}
	return forecasts
}

func (s *Service) fetchObservation(city string) (*Observation, error) {
	stations, err := s.observationCache.GetOrFetch("observation", func() ([]stationRecord, error) {
		var payload struct {
			Records struct {
				Station []stationRecord `json:"Station"`
			} `json:"records"`
		}
		if err := s.getJSON(observationDatastore, &payload); err != nil {
			return nil, err
		}
		return payload.Records.Station, nil
	})
	if err != nil {
		return nil, err
	}

	normalized := NormalizeCity(city)
	for _, station := range stations {
		if NormalizeCity(station.GeoInfo.CountyName) == normalized {
			return s.parseObservation(station), nil
		}
	}
	return nil, nil
}

func (s *Service) parseObservation(station stationRecord) *Observation {
	observedAt, err := time.Parse(time.RFC3339, station.ObsTime.DateTime)
	if err != nil {
		observedAt = s.now()
	}

	obs := &Observation{
		StationName: station.StationName,
		WeatherDesc: station.WeatherElement.Weather,
		ObservedAt:  observedAt.In(s.timezone),
	}
	if obs.WeatherDesc == "" {
		obs.WeatherDesc = "-"
	}

	// -99 is the CWA sentinel for a missing reading.
	if t := station.WeatherElement.AirTemperature; t != nil && *t != -99 {
		obs.Temperature = *t
	}
	if h := station.WeatherElement.RelativeHumidity; h != nil && *h != -99 {
		obs.Humidity = h
	}
	if w := station.WeatherElement.WindSpeed; w != nil && *w != -99 {
		obs.WindSpeed = w
	}
	return obs
}

// getJSON performs an authorized datastore request and decodes the body.
func (s *Service) getJSON(datastore string, out any) error {
	query := url.Values{}
	query.Set("Authorization", s.apiKey)
	query.Set("format", "JSON")

	resp, err := s.client.Get(fmt.Sprintf("%s/%s?%s", s.baseURL, datastore, query.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// formatTimeLabel renders a forecast slot start as 今天/明天/後天 HH:MM,
// falling back to MM/DD for later days.
func formatTimeLabel(now, target time.Time) string {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	targetDate := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, target.Location())
	var prefix string
	switch int(targetDate.Sub(nowDate).Hours() / 24) {
	case 0:
		prefix = "今天"
	case 1:
		prefix = "明天"
	case 2:
		prefix = "後天"
	default:
		prefix = target.Format("01/02")
	}
	return fmt.Sprintf("%s %s", prefix, target.Format("15:04"))
}

func elementValue(times []forecastTime, idx int, key string) string {
	if idx >= len(times) {
		return ""
	}
	values := times[idx].ElementValue
	if len(values) == 0 {
		return ""
	}
	return values[0][key]
}

func parseIntValue(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// Wire types for the two datastores. The API uses PascalCase keys and
// string-typed forecast values.

type forecastRecords struct {
	Locations []struct {
		Location []forecastLocation `json:"Location"`
	} `json:"Locations"`
}

type forecastLocation struct {
	LocationName   string `json:"LocationName"`
	WeatherElement []struct {
		ElementName string         `json:"ElementName"`
		Time        []forecastTime `json:"Time"`
	} `json:"WeatherElement"`
}

type forecastTime struct {
	StartTime    string              `json:"StartTime"`
	EndTime      string              `json:"EndTime"`
	ElementValue []map[string]string `json:"ElementValue"`
}

type stationRecord struct {
	StationName string `json:"StationName"`
	GeoInfo     struct {
		CountyName string `json:"CountyName"`
	} `json:"GeoInfo"`
	ObsTime struct {
		DateTime string `json:"DateTime"`
	} `json:"ObsTime"`
	WeatherElement struct {
		Weather          string   `json:"Weather"`
		AirTemperature   *float64 `json:"AirTemperature"`
		RelativeHumidity *float64 `json:"RelativeHumidity"`
		WindSpeed        *float64 `json:"WindSpeed"`
	} `json:"WeatherElement"`
}
