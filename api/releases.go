package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrAssetNotFound = errors.New("release asset not found")

type Release struct {
	TagName string
	Assets  []Asset
}

type Asset struct {
	Name               string
	BrowserDownloadURL string
	Size               int64
}

// FindAsset returns the asset named substr, or else the first whose name contains it.
func (r Release) FindAsset(substr string) (Asset, bool) {
	for _, a := range r.Assets {
		if a.Name == substr {
			return a, true
		}
	}
	for _, a := range r.Assets {
		if strings.Contains(a.Name, substr) {
			return a, true
		}
	}
	return Asset{}, false
}

// LatestRelease fetches the latest published release of an owner/name repo.
func (c *Client) LatestRelease(ctx context.Context, repo string) (Release, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.SetAuthToken(c.token)
	}

	resp, err := req.Get(c.githubAPI + "/repos/" + repo + "/releases/latest")
	if err != nil {
		return Release{}, fmt.Errorf("fetch latest release of %s: %w", repo, err)
	}
	if resp.StatusCode() != 200 {
		return Release{}, fmt.Errorf("fetch latest release of %s (%d)", repo, resp.StatusCode())
	}
	return parseRelease(resp.Body())
}

func parseRelease(body []byte) (Release, error) {
	if !gjson.ValidBytes(body) {
		return Release{}, errors.New("failed to parse release data")
	}
	doc := gjson.ParseBytes(body)
	tag := doc.Get("tag_name")
	if !tag.Exists() {
		return Release{}, errors.New("release data has no tag_name")
	}

	release := Release{TagName: tag.String()}
	doc.Get("assets").ForEach(func(_, a gjson.Result) bool {
		release.Assets = append(release.Assets, Asset{
			Name:               a.Get("name").String(),
			BrowserDownloadURL: a.Get("browser_download_url").String(),
			Size:               a.Get("size").Int(),
		})
		return true
	})
	return release, nil
}
