package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// GraphStore reads a SharePoint document library through the Microsoft Graph
// API using client-credentials auth. The access token is cached and renewed
// shortly before expiry.
type GraphStore struct {
	baseURL  string
	tokenURL string
	clientID string
	secret   string
	siteID   string
	driveID  string

	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type GraphConfig struct {
	BaseURL      string
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteID       string
	DriveID      string
	Timeout      time.Duration
}

func NewGraphStore(cfg GraphConfig) *GraphStore {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GraphStore{
		baseURL:    baseURL,
		tokenURL:   fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		siteID:     cfg.SiteID,
		driveID:    cfg.DriveID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// List returns the immediate children of path, following server paging until
// the listing is complete.
func (s *GraphStore) List(ctx context.Context, path string) ([]Entry, error) {
	var entries []Entry
	next := s.childrenURL(path)
	for next != "" {
		page, nextLink, err := s.listPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			entry := Entry{
				Name:     item.Name,
				Path:     joinPath(path, item.Name),
				IsFolder: item.Folder != nil,
				Size:     item.Size,
			}
			entries = append(entries, entry)
		}
		next = nextLink
	}
	return entries, nil
}

// Fetch downloads one file's raw bytes.
func (s *GraphStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file failed: %w", err)
	}
	defer resp.Body.Close()

	if err := s.checkStatus(resp, path); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file content failed: %w", err)
	}
	return data, nil
}

type driveItem struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
}

func (s *GraphStore) listPage(ctx context.Context, pageURL string) ([]driveItem, string, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build list request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("list folder failed: %w", err)
	}
	defer resp.Body.Close()

	if err := s.checkStatus(resp, pageURL); err != nil {
		return nil, "", err
	}

	var parsed struct {
		Value    []driveItem `json:"value"`
		NextLink string      `json:"@odata.nextLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("parse folder listing failed: %w", err)
	}
	return parsed.Value, parsed.NextLink, nil
}

func (s *GraphStore) checkStatus(resp *http.Response, what string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("document store status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// accessToken returns a cached token, refreshing through the client
// credentials grant when it is within a minute of expiring.
func (s *GraphStore) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.tokenExpiry) > time.Minute {
		return s.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.secret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token response status %d: %w", resp.StatusCode, ErrUnauthorized)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse token response failed: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", ErrUnauthorized
	}

	s.token = parsed.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return s.token, nil
}

// drivePath is the API prefix for the configured drive; an explicit drive id
// wins over the site default drive.
func (s *GraphStore) drivePath() string {
	if s.driveID != "" {
		return fmt.Sprintf("%s/drives/%s", s.baseURL, s.driveID)
	}
	return fmt.Sprintf("%s/sites/%s/drive", s.baseURL, s.siteID)
}

func (s *GraphStore) childrenURL(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return s.drivePath() + "/root/children"
	}
	return fmt.Sprintf("%s/root:/%s:/children", s.drivePath(), escapePath(path))
}

func (s *GraphStore) contentURL(path string) string {
	return fmt.Sprintf("%s/root:/%s:/content", s.drivePath(), escapePath(strings.Trim(path, "/")))
}

// escapePath escapes each segment but keeps the slashes that separate them.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func joinPath(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
