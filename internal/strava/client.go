// internal/strava/client.go
package strava

import (
	"alcyxob/strava-coaching/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	apiBaseURL   = "https://www.strava.com/api/v3"
	authURL      = "https://www.strava.com/oauth/authorize"
	tokenURL     = "https://www.strava.com/oauth/token"
	perPageLimit = 100
)

// --- Error Definitions ---
var (
	ErrNoCredentials = errors.New("mentee has no linked Strava credentials")
	ErrRateLimited   = errors.New("strava API rate limit exceeded")
)

// SummaryActivity mirrors the fields of Strava's SummaryActivity payload
// that the matching engine consumes.
type SummaryActivity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	SportType      string    `json:"sport_type"`    // "Run", "Ride", "VirtualRun", ...
	Type           string    `json:"type"`          // Legacy field, fallback when sport_type is absent
	Distance       float64   `json:"distance"`      // meters
	MovingTime     int       `json:"moving_time"`   // seconds
	AverageSpeed   float64   `json:"average_speed"` // m/s
	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
}

// ActivityPage is one page of the athlete activities listing, with the
// raw response body preserved for archival.
type ActivityPage struct {
	Activities []SummaryActivity
	Raw        []byte
}

// Client is a minimal Strava REST client. It refreshes expired access
// tokens transparently through oauth2 and reports refreshed credentials
// back to the caller so they can be persisted.
type Client interface {
	// ListActivities fetches one page of the athlete's activities
	// started after the given instant. Returned credentials differ from
	// the input only when the access token was refreshed.
	ListActivities(ctx context.Context, creds *domain.StravaCredentials, after time.Time, page int) (*ActivityPage, *domain.StravaCredentials, error)
}

// client implements the Client interface.
type client struct {
	oauthConfig *oauth2.Config
	httpTimeout time.Duration
}

// NewClient creates a Strava API client for the given application
// credentials (client id/secret from the Strava developer portal).
func NewClient(clientID, clientSecret string) Client {
	return &client{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		httpTimeout: 30 * time.Second,
	}
}

// ListActivities fetches /athlete/activities?after=...&page=...
func (c *client) ListActivities(ctx context.Context, creds *domain.StravaCredentials, after time.Time, page int) (*ActivityPage, *domain.StravaCredentials, error) {
	if creds == nil || creds.RefreshToken == "" {
		return nil, nil, ErrNoCredentials
	}
	if page < 1 {
		page = 1
	}

	httpClient, refreshed, err := c.authenticatedClient(ctx, creds)
	if err != nil {
		return nil, nil, err
	}

	query := url.Values{}
	query.Set("after", strconv.FormatInt(after.Unix(), 10))
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPageLimit))

	reqURL := fmt.Sprintf("%s/athlete/activities?%s", apiBaseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("strava request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to decode
	case http.StatusTooManyRequests:
		return nil, nil, ErrRateLimited
	default:
		return nil, nil, fmt.Errorf("strava returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var activities []SummaryActivity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, nil, fmt.Errorf("decoding activities page: %w", err)
	}

	return &ActivityPage{Activities: activities, Raw: body}, refreshed, nil
}

// authenticatedClient builds an http.Client whose transport injects a
// valid access token, refreshing it via the token endpoint when expired.
// The returned credentials carry the (possibly refreshed) tokens.
func (c *client) authenticatedClient(ctx context.Context, creds *domain.StravaCredentials) (*http.Client, *domain.StravaCredentials, error) {
	stored := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.ExpiresAt,
	}

	source := c.oauthConfig.TokenSource(ctx, stored)
	token, err := source.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("refreshing strava token: %w", err)
	}

	refreshed := &domain.StravaCredentials{
		AthleteID:    creds.AthleteID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if refreshed.RefreshToken == "" {
		// Strava omits the refresh token when it hasn't rotated.
		refreshed.RefreshToken = creds.RefreshToken
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	httpClient.Timeout = c.httpTimeout
	return httpClient, refreshed, nil
}

// ToDomain converts a Strava summary payload into our Activity model.
// StartDateLocal is preferred so the matcher's day-grouping follows the
// athlete's calendar, not UTC.
func (a SummaryActivity) ToDomain() domain.Activity {
	sportType := a.SportType
	if sportType == "" {
		sportType = a.Type
	}
	startDate := a.StartDateLocal
	if startDate.IsZero() {
		startDate = a.StartDate
	}
	return domain.Activity{
		StravaID:        a.ID,
		Name:            a.Name,
		ActivityType:    sportType,
		DistanceM:       a.Distance,
		MovingTimeS:     a.MovingTime,
		AverageSpeedMps: a.AverageSpeed,
		StartDate:       startDate,
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
