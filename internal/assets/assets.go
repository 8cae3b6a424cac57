// Package assets serves the embedded viewer shell.
//
// The shell files are embedded gzip-compressed. On first request an asset
// is decompressed once and kept snappy-compressed in memory; later requests
// pay only the cheap snappy decode instead of a full gzip inflate. The
// cache is read-mostly and guarded by an RWMutex.
package assets

import (
	"bytes"
	"embed"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"

	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

//go:embed dist
var dist embed.FS

// placeholders substituted into the app-config template.
const (
	basenamePlaceholder = "${ROUTER_BASENAME}"
	dicomWebPlaceholder = "${USE_DICOM_WEB}"
)

type cachedAsset struct {
	compressed  []byte
	contentType string
}

// Service hands out viewer shell assets and the rendered app-config.js.
type Service struct {
	mu    sync.RWMutex
	cache map[string]cachedAsset

	appConfig []byte
}

// Config controls app-config.js rendering.
type Config struct {
	// RouterBasename is the URL prefix the viewer is mounted under.
	RouterBasename string
	// UseDicomWeb selects the DICOMweb data source instead of dicom-json.
	UseDicomWeb bool
	// UserConfiguration, when non-empty, is prepended to the embedded
	// template so user settings load first. Placeholders are substituted
	// in both parts.
	UserConfiguration []byte
}

// NewService renders app-config.js once and returns a service with an
// empty asset cache.
func NewService(cfg Config) (*Service, error) {
	embedded, err := dist.ReadFile("dist/app-config.js.tmpl")
	if err != nil {
		return nil, lenserr.NewInternalError("embedded app-config template missing", err)
	}
	template := embedded
	if len(cfg.UserConfiguration) > 0 {
		template = append(append([]byte{}, cfg.UserConfiguration...), '\n')
		template = append(template, embedded...)
	}

	basename := cfg.RouterBasename
	if basename == "" {
		basename = "/viewer"
	}
	useDicomWeb := "false"
	if cfg.UseDicomWeb {
		useDicomWeb = "true"
	}

	rendered := strings.ReplaceAll(string(template), basenamePlaceholder, basename)
	rendered = strings.ReplaceAll(rendered, dicomWebPlaceholder, useDicomWeb)

	return &Service{
		cache:     make(map[string]cachedAsset),
		appConfig: []byte(rendered),
	}, nil
}

// AppConfig returns the rendered app-config.js.
func (s *Service) AppConfig() []byte {
	return s.appConfig
}

// Get returns the decompressed asset at the given path ("index.html",
// "app.js", ...) and its content type. Unknown paths yield a not-found
// error mapped to the study-unknown kind so the HTTP layer renders 404.
func (s *Service) Get(name string) ([]byte, string, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if name == "" || name == "." {
		name = "index.html"
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		data, err := snappy.Decode(nil, cached.compressed)
		if err != nil {
			return nil, "", lenserr.NewInternalError("corrupt asset cache entry", err)
		}
		return data, cached.contentType, nil
	}

	raw, err := dist.ReadFile("dist/" + name + ".gz")
	if err != nil {
		if _, statErr := fs.Stat(dist, "dist/"+name+".gz"); statErr != nil {
			return nil, "", lenserr.New(lenserr.ErrCategoryInternal, lenserr.CodeAssetUnknown,
				"no such asset: "+name)
		}
		return nil, "", lenserr.NewInternalError("reading embedded asset "+name, err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, "", lenserr.NewInternalError("decompressing embedded asset "+name, err)
	}
	data, err := io.ReadAll(zr)
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, "", lenserr.NewInternalError("decompressing embedded asset "+name, err)
	}

	s.mu.Lock()
	s.cache[name] = cachedAsset{
		compressed:  snappy.Encode(nil, data),
		contentType: contentType(name),
	}
	s.mu.Unlock()

	return data, contentType(name), nil
}

// IsAssetPath reports whether the final path segment names a shell file.
// Client-side routes may carry dots (study and series identifiers are
// dotted), so only a recognized extension makes a path an asset lookup.
func IsAssetPath(name string) bool {
	switch path.Ext(path.Base(name)) {
	case ".html", ".js", ".css", ".json", ".png", ".svg", ".ico", ".woff2", ".wasm", ".map":
		return true
	}
	return false
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	case ".woff2":
		return "font/woff2"
	case ".wasm":
		return "application/wasm"
	default:
		return "application/octet-stream"
	}
}
