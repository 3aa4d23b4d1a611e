package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"vectorinsight/fidelity"
)

// SiteDirectory resolves a program's registered collection sites from the
// upstream API. It implements fidelity.SiteDirectory.
type SiteDirectory struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewSiteDirectory(baseURL, token string, timeout time.Duration) *SiteDirectory {
	return &SiteDirectory{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
	}
}

func (d *SiteDirectory) ProgramSites(ctx context.Context, programID string) (fidelity.SiteList, error) {
	target, err := url.JoinPath(d.baseURL, "programs", url.PathEscape(programID), "sites")
	if err != nil {
		return fidelity.SiteList{}, fmt.Errorf("build site directory url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fidelity.SiteList{}, err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fidelity.SiteList{}, fmt.Errorf("site directory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fidelity.SiteList{}, fmt.Errorf("site directory: status %d", resp.StatusCode)
	}

	var decoded struct {
		Sites []struct {
			SiteID string `json:"site_id"`
		} `json:"sites"`
		ExpectedHouses int `json:"expected_houses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fidelity.SiteList{}, fmt.Errorf("site directory: decode: %w", err)
	}
	list := fidelity.SiteList{ExpectedHouses: decoded.ExpectedHouses}
	for _, s := range decoded.Sites {
		if s.SiteID != "" {
			list.SiteIDs = append(list.SiteIDs, s.SiteID)
		}
	}
	return list, nil
}
