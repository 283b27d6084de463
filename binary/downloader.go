package binary

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultHTTPTimeout bounds every request this package makes.
const DefaultHTTPTimeout = 30 * time.Second

// Downloader fetches binary project definitions, downloads cached zips
// for direct version URLs, and queries a release host for tagged release
// assets. Downloads land in a scratch file first and are finalized with
// an atomic rename, so the cache never holds a partial artifact.
type Downloader struct {
	Client    *http.Client
	CacheRoot string

	// NetrcPath and UseNetrc resolve an Authorization header for a host;
	// see netrc.go.
	NetrcPath string
	UseNetrc  bool

	// ReleaseHostToken authenticates release-host API requests.
	ReleaseHostToken string
}

// NewDownloader returns a Downloader with the default HTTP timeout applied.
func NewDownloader(cacheRoot string) *Downloader {
	return &Downloader{
		Client:    &http.Client{Timeout: DefaultHTTPTimeout},
		CacheRoot: cacheRoot,
	}
}

// FetchBinaryProject implements container.BinaryFetcher: GET url and parse
// the `{version: url}` document. This is the container
// package's only seam into the binary downloader, kept here rather than
// duplicated so the caching/auth plumbing lives in one place.
func (d *Downloader) FetchBinaryProject(url string) (map[string]string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, &ReadFailedError{URL: url, Cause: err}
	}
	d.attachAuth(req)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, &ReadFailedError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ReadFailedError{URL: url, Cause: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var project map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, &InvalidBinaryJSONError{URL: url, Cause: err}
	}
	return project, nil
}

// DownloadBinary computes a stable cache path
// <cacheRoot>/<depName>/<version>/<filename>. If the file exists, it is
// returned as-is. Otherwise the artifact is downloaded to a scratch file
// and finalized via rename(2); on EXDEV it falls back to a
// copy-and-delete move.
func (d *Downloader) DownloadBinary(depName, version, url string) (string, error) {
	filename := filepath.Base(url)
	if filename == "" || filename == "." || filename == "/" {
		filename = "artifact.zip"
	}
	destDir := filepath.Join(d.CacheRoot, "binaries", depName, version)
	dest := filepath.Join(destDir, filename)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &WriteFailedError{URL: url, Cause: err}
	}

	scratch, err := d.fetchToScratch(url, destDir)
	if err != nil {
		return "", err
	}

	if err := finalizeMove(scratch, dest); err != nil {
		os.Remove(scratch)
		return "", &WriteFailedError{URL: url, Cause: err}
	}
	return dest, nil
}

// release mirrors the release-host JSON shape: a tag, a draft flag, and a
// list of downloadable assets.
type release struct {
	TagName string  `json:"tag_name"`
	Draft   bool    `json:"draft"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	ContentType        string `json:"content_type"`
}

// ReleaseNotFoundError reports that the release host has no release
// tagged pinnedVersion. Not a fatal condition: callers check for this
// type specifically and fall through to a source checkout.
type ReleaseNotFoundError struct {
	Owner, Repo, Tag string
}

func (e *ReleaseNotFoundError) Error() string {
	return fmt.Sprintf("no release tagged %q found for %s/%s", e.Tag, e.Owner, e.Repo)
}

// DownloadFromReleaseHost queries the release-host API for a release
// tagged with pinnedVersion, filters to non-draft releases with at least
// one asset matching assetPattern and the content-type allowlist, and
// downloads each matching asset to its own cache slot. On an
// authenticated request failure it retries once anonymously.
func (d *Downloader) DownloadFromReleaseHost(depName, pinnedVersion, server, owner, repo, assetPattern string, contentTypeAllowlist []string) ([]string, error) {
	rel, err := d.fetchRelease(server, owner, repo, pinnedVersion)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, &ReleaseNotFoundError{Owner: owner, Repo: repo, Tag: pinnedVersion}
	}
	if rel.Draft {
		return nil, &ReleaseNotFoundError{Owner: owner, Repo: repo, Tag: pinnedVersion}
	}

	matches := matchingAssets(rel.Assets, assetPattern, contentTypeAllowlist)
	if len(matches) == 0 {
		return nil, &ReleaseNotFoundError{Owner: owner, Repo: repo, Tag: pinnedVersion}
	}

	var cached []string
	for _, a := range matches {
		destDir := filepath.Join(d.CacheRoot, "binaries", depName, pinnedVersion)
		dest := filepath.Join(destDir, fmt.Sprintf("%d-%s", a.ID, a.Name))

		if _, err := os.Stat(dest); err == nil {
			cached = append(cached, dest)
			continue
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return nil, &WriteFailedError{URL: a.BrowserDownloadURL, Cause: err}
		}
		scratch, err := d.fetchToScratch(a.BrowserDownloadURL, destDir)
		if err != nil {
			return nil, err
		}
		if err := finalizeMove(scratch, dest); err != nil {
			os.Remove(scratch)
			return nil, &WriteFailedError{URL: a.BrowserDownloadURL, Cause: err}
		}
		cached = append(cached, dest)
	}
	return cached, nil
}

func matchingAssets(assets []asset, pattern string, contentTypeAllowlist []string) []asset {
	var out []asset
	for _, a := range assets {
		if pattern != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(pattern)) {
			continue
		}
		if len(contentTypeAllowlist) > 0 && !contains(contentTypeAllowlist, a.ContentType) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func (d *Downloader) fetchRelease(server, owner, repo, tag string) (*release, error) {
	if server == "" {
		server = "api.github.com"
	}
	url := fmt.Sprintf("https://%s/repos/%s/%s/releases/tags/%s", server, owner, repo, tag)

	rel, status, err := d.getReleaseJSON(url, true)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			// A stale or over-scoped token shouldn't block a public
			// release; retry once anonymously.
			rel, status, err = d.getReleaseJSON(url, false)
		}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		if _, isTimeout := err.(*ReleaseHostAPITimeoutError); isTimeout {
			return nil, err
		}
		return nil, &ReleaseHostAPIRequestFailedError{Cause: err}
	}
	return rel, nil
}

func (d *Downloader) getReleaseJSON(url string, withAuth bool) (*release, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if withAuth {
		if d.ReleaseHostToken != "" {
			req.Header.Set("Authorization", "token "+d.ReleaseHostToken)
		} else {
			d.attachAuth(req)
		}
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		if urlErr, ok := err.(interface{ Timeout() bool }); ok && urlErr.Timeout() {
			return nil, 0, &ReleaseHostAPITimeoutError{}
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, errors.Errorf("release host returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, resp.StatusCode, err
	}
	return &rel, resp.StatusCode, nil
}

func (d *Downloader) attachAuth(req *http.Request) {
	if !d.UseNetrc {
		return
	}
	cred, ok, err := LookupNetrc(d.NetrcPath, req.URL.Host)
	if err != nil || !ok {
		return
	}
	req.SetBasicAuth(cred.Login, cred.Password)
}

// fetchToScratch downloads url's body into a scratch file under dir,
// returning its path. The caller is responsible for finalizing or
// removing it.
func (d *Downloader) fetchToScratch(url, dir string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", &ReadFailedError{URL: url, Cause: err}
	}
	d.attachAuth(req)

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", &ReadFailedError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ReadFailedError{URL: url, Cause: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	scratch, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return "", &WriteFailedError{URL: url, Cause: err}
	}
	defer scratch.Close()

	if _, err := io.Copy(scratch, resp.Body); err != nil {
		os.Remove(scratch.Name())
		return "", &WriteFailedError{URL: url, Cause: err}
	}
	return scratch.Name(), nil
}
