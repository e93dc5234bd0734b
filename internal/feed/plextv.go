// Package feed resolves the latest published Plex Media Server release
// and downloads package artifacts.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/igoyetche/plex-update-script/internal/plexup"
)

// DefaultURL is the public plex.tv downloads endpoint.
const DefaultURL = "https://plex.tv/api/downloads/5.json"

// debianCompatDistro is accepted in addition to the configured distro
// label: Debian-compatible builds are published under "ubuntu".
const debianCompatDistro = "ubuntu"

// downloadsResponse is the slice of the feed schema this tool consumes.
type downloadsResponse struct {
	Computer struct {
		Linux struct {
			Version  string `json:"version"`
			Releases []struct {
				Build  string `json:"build"`
				Distro string `json:"distro"`
				URL    string `json:"url"`
			} `json:"releases"`
		} `json:"Linux"`
	} `json:"computer"`
}

// Client fetches the version feed and downloads release artifacts.
type Client struct {
	http   *resty.Client
	logger plexup.Logger
}

var (
	_ plexup.ReleaseFeed = (*Client)(nil)
	_ plexup.Downloader  = (*Client)(nil)
)

// NewClient creates a feed client for the given endpoint.
func NewClient(feedURL string, timeout time.Duration, logger plexup.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(feedURL)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)
	return &Client{http: client, logger: logger}
}

// LatestRelease returns the first release entry whose build is
// "linux-<arch>" and whose distro matches the configured label or the
// "ubuntu" fallback. All failures wrap plexup.ErrFetch.
func (c *Client) LatestRelease(ctx context.Context, arch, distro string) (*plexup.Release, error) {
	var body downloadsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", plexup.ErrFetch, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", plexup.ErrFetch, resp.StatusCode())
	}

	linux := body.Computer.Linux
	if linux.Version == "" {
		return nil, fmt.Errorf("%w: feed has no Linux version", plexup.ErrFetch)
	}

	build := "linux-" + arch
	for _, release := range linux.Releases {
		if release.Build != build {
			continue
		}
		if release.Distro != distro && release.Distro != debianCompatDistro {
			continue
		}
		c.logger.Debug("release matched", "build", release.Build, "distro", release.Distro)
		return &plexup.Release{Version: linux.Version, URL: release.URL}, nil
	}

	return nil, fmt.Errorf("%w: no release for build %q distro %q", plexup.ErrFetch, build, distro)
}

// Download streams the artifact at rawURL into destDir and returns the
// downloaded file's path. The filename is taken from the URL path.
func (c *Client) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing download URL: %w", err)
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("download URL %q has no filename", rawURL)
	}
	destPath := filepath.Join(destDir, name)

	resp, err := resty.NewWithClient(c.http.GetClient()).R().
		SetContext(ctx).
		SetOutput(destPath).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("downloading: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("downloading: status %d", resp.StatusCode())
	}

	c.logger.Info("artifact downloaded", "path", destPath)
	return destPath, nil
}
