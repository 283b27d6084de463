package binary

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchBinaryProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"1.0.0": "https://example.com/Foo-1.0.0.zip",
			"1.1.0": "https://example.com/Foo-1.1.0.zip",
		})
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	project, err := d.FetchBinaryProject(srv.URL)
	if err != nil {
		t.Fatalf("FetchBinaryProject: %v", err)
	}
	if project["1.0.0"] != "https://example.com/Foo-1.0.0.zip" {
		t.Fatalf("unexpected project map: %+v", project)
	}
}

func TestFetchBinaryProjectBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	_, err := d.FetchBinaryProject(srv.URL)
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if _, ok := err.(*ReadFailedError); !ok {
		t.Fatalf("expected *ReadFailedError, got %T", err)
	}
}

func TestFetchBinaryProjectInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	_, err := d.FetchBinaryProject(srv.URL)
	if _, ok := err.(*InvalidBinaryJSONError); !ok {
		t.Fatalf("expected *InvalidBinaryJSONError, got %T: %v", err, err)
	}
}

func TestDownloadBinaryCachesOnSecondCall(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	url := srv.URL + "/Foo.zip"

	path1, err := d.DownloadBinary("Foo", "1.0.0", url)
	if err != nil {
		t.Fatalf("DownloadBinary: %v", err)
	}
	data, err := os.ReadFile(path1)
	if err != nil || string(data) != "zip-bytes" {
		t.Fatalf("unexpected cached contents: %q, err=%v", data, err)
	}

	path2, err := d.DownloadBinary("Foo", "1.0.0", url)
	if err != nil {
		t.Fatalf("DownloadBinary (cached): %v", err)
	}
	if path1 != path2 {
		t.Fatalf("expected stable cache path, got %q and %q", path1, path2)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one GET, got %d", hits)
	}
}

func TestDownloadFromReleaseHostFiltersAssets(t *testing.T) {
	var assetURLPrefix string
	mux := http.NewServeMux()
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()
	assetURLPrefix = srv.URL + "/assets/"

	mux.HandleFunc("/repos/acme/Foo/releases/tags/2.0.0", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(release{
			TagName: "2.0.0",
			Draft:   false,
			Assets: []asset{
				{ID: 1, Name: "Foo.framework.zip", ContentType: "application/zip", BrowserDownloadURL: assetURLPrefix + "Foo.framework.zip"},
				{ID: 2, Name: "Foo.dSYM.zip", ContentType: "application/zip", BrowserDownloadURL: assetURLPrefix + "Foo.dSYM.zip"},
				{ID: 3, Name: "README.md", ContentType: "text/plain", BrowserDownloadURL: assetURLPrefix + "README.md"},
			},
		})
	})
	mux.HandleFunc("/assets/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset-bytes"))
	})

	d := NewDownloader(t.TempDir())
	d.Client = srv.Client()
	paths, err := d.DownloadFromReleaseHost("Foo", "2.0.0", stripScheme(srv.URL), "acme", "Foo", "framework", []string{"application/zip"})
	if err != nil {
		t.Fatalf("DownloadFromReleaseHost: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected exactly one matching asset, got %d: %v", len(paths), paths)
	}
	if filepath.Base(paths[0]) != "1-Foo.framework.zip" {
		t.Fatalf("unexpected asset cache name: %q", paths[0])
	}
}

func TestDownloadFromReleaseHostNotFound(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	d.Client = srv.Client()
	_, err := d.DownloadFromReleaseHost("Foo", "9.9.9", stripScheme(srv.URL), "acme", "Foo", "", nil)
	if _, ok := err.(*ReleaseNotFoundError); !ok {
		t.Fatalf("expected *ReleaseNotFoundError, got %T: %v", err, err)
	}
}

// stripScheme strips "https://" so the server's address can stand in for a
// release-host hostname (fetchRelease always prefixes "https://" itself).
func stripScheme(u string) string {
	for i := 0; i < len(u); i++ {
		if u[i] == '/' && i+1 < len(u) && u[i+1] == '/' {
			return u[i+2:]
		}
	}
	return u
}
