package courtprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Amund211/canchas/internal/config"
	"github.com/Amund211/canchas/internal/constants"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/reporting"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ATC is the HTTP client for the Alquila Tu Cancha API
type ATC struct {
	httpClient HttpClient
	baseURL    *url.URL
}

func NewATC(httpClient HttpClient, baseURL string) (*ATC, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ATC base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("ATC base url must be absolute: %s", baseURL)
	}

	return &ATC{
		httpClient: httpClient,
		baseURL:    parsed,
	}, nil
}

func (a *ATC) GetClubs(ctx context.Context, placeID string) ([]domain.Club, error) {
	query := url.Values{}
	query.Set("placeId", placeID)

	return fetchList[domain.Club](ctx, a, a.baseURL.JoinPath("clubs"), query)
}

func (a *ATC) GetCourts(ctx context.Context, clubID int) ([]domain.Court, error) {
	return fetchList[domain.Court](ctx, a, a.baseURL.JoinPath("clubs", strconv.Itoa(clubID), "courts"), nil)
}

func (a *ATC) GetAvailableSlots(ctx context.Context, clubID, courtID int, date time.Time) ([]domain.Slot, error) {
	query := url.Values{}
	query.Set("date", domain.DateKey(date))

	return fetchList[domain.Slot](
		ctx,
		a,
		a.baseURL.JoinPath("clubs", strconv.Itoa(clubID), "courts", strconv.Itoa(courtID), "slots"),
		query,
	)
}

func fetchList[T any](ctx context.Context, a *ATC, endpoint *url.URL, query url.Values) ([]T, error) {
	statusCode, data, err := a.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	items, err := decodeATCResponse[T](statusCode, data)
	if err != nil {
		if !errors.Is(err, domain.ErrTemporarilyUnavailable) {
			reporting.Report(ctx, err, map[string]string{
				"path":   endpoint.Path,
				"status": strconv.Itoa(statusCode),
			})
		}
		return nil, err
	}

	return items, nil
}

func (a *ATC) get(ctx context.Context, endpoint *url.URL, query url.Values) (int, []byte, error) {
	logger := logging.FromContext(ctx)

	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return -1, nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		// Counted by the circuit breaker, not reported
		return -1, nil, fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, nil, fmt.Errorf("%w: failed to read response body: %w", domain.ErrTemporarilyUnavailable, err)
	}

	logger.InfoContext(
		ctx, "ATC request completed",
		slog.String("path", endpoint.Path),
		slog.Int("status", resp.StatusCode),
		slog.String("duration", time.Since(start).String()),
	)

	return resp.StatusCode, data, nil
}

func decodeATCResponse[T any](statusCode int, data []byte) ([]T, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: ATC API returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}

	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("ATC API returned unexpected status code %d", statusCode)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse ATC response: %w", err)
	}
	if items == nil {
		items = []T{}
	}

	return items, nil
}

type mockedATC struct{}

func (m *mockedATC) GetClubs(ctx context.Context, placeID string) ([]domain.Club, error) {
	return []domain.Club{
		{ID: 1, Attributes: map[string]any{"name": "Club Uno", "placeId": placeID}},
		{ID: 2, Attributes: map[string]any{"name": "Club Dos", "placeId": placeID}},
	}, nil
}

func (m *mockedATC) GetCourts(ctx context.Context, clubID int) ([]domain.Court, error) {
	return []domain.Court{
		{ID: clubID*10 + 1, Attributes: map[string]any{"name": "Cancha 1"}},
		{ID: clubID*10 + 2, Attributes: map[string]any{"name": "Cancha 2"}},
	}, nil
}

func (m *mockedATC) GetAvailableSlots(ctx context.Context, clubID, courtID int, date time.Time) ([]domain.Slot, error) {
	slots := []domain.Slot{}
	for hour := 9; hour < 12; hour++ {
		datetime := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.UTC)
		slots = append(slots, domain.Slot{
			Price:    1000,
			Duration: 60,
			Datetime: datetime,
			Start:    datetime.Format("15:04"),
			End:      datetime.Add(time.Hour).Format("15:04"),
		})
	}
	return slots, nil
}

func NewATCOrMock(config config.Config, httpClient HttpClient) (CourtProvider, error) {
	if config.ATCBaseURL() != "" {
		return NewATC(httpClient, config.ATCBaseURL())
	}
	if config.IsDevelopment() {
		return &mockedATC{}, nil
	}
	return nil, fmt.Errorf("Missing ATC base url in non-development environment")
}
