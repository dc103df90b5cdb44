package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/registry"
)

// DefaultMaxBytes caps every file the loader reads
const DefaultMaxBytes int64 = 32 << 20

// ErrUnsupportedFormat is returned for definition files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported definition format")

// Loader reads definition files, manifests and document trees from disk
type Loader struct {
	maxBytes int64
	logger   *zap.Logger
}

// NewLoader creates a loader. maxBytes <= 0 selects DefaultMaxBytes.
func NewLoader(maxBytes int64, logger *zap.Logger) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{maxBytes: maxBytes, logger: logger}
}

// ReadFile reads a whole file, refusing files larger than the size limit
func (l *Loader) ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Read one byte past the limit to detect oversized files
	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("read %s: file exceeds %d bytes", path, l.maxBytes)
	}
	return data, nil
}

// decode unmarshals a definition file according to its extension
func decode(path string, data []byte, v any) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".json":
		err = json.Unmarshal(data, v)
	case ".toml":
		err = toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%s: %w %q (want .yaml, .yml, .json or .toml)", path, ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// LoadParameters reads and ingests a parameter definition file. Decode
// failures and ingestion problems are both reported as *model.IngestionError.
func (l *Loader) LoadParameters(path string, opts ...params.IngestOption) (*params.Store, error) {
	var raw params.RawTree
	if err := l.readDefinition(path, &raw); err != nil {
		return nil, err
	}

	store, err := params.Ingest(raw, opts...)
	if err != nil {
		return nil, relabel(err, path)
	}

	l.logger.Debug("Loaded parameters",
		zap.String("path", path),
		zap.Int("parameters", store.Len()),
		zap.String("fingerprint", store.Fingerprint()))
	return store, nil
}

// LoadFormulas reads and ingests a formula definition file. The registry of
// every valid claim is returned even when some claims were rejected.
func (l *Loader) LoadFormulas(path string) (*registry.Registry, error) {
	var raw registry.RawFormulas
	if err := l.readDefinition(path, &raw); err != nil {
		return nil, err
	}

	reg, err := registry.Ingest(raw.Claims)
	if err != nil {
		err = relabel(err, path)
	}

	l.logger.Debug("Loaded formulas",
		zap.String("path", path),
		zap.Int("claims", reg.Len()),
		zap.Int("rejected", len(reg.Rejections())))
	return reg, err
}

func (l *Loader) readDefinition(path string, v any) error {
	data, err := l.ReadFile(path)
	if err == nil {
		err = decode(path, data, v)
	}
	if err != nil {
		ie := &model.IngestionError{Source: path}
		ie.Add(filepath.Base(path), "", err)
		return ie
	}
	return nil
}

// relabel names the file an ingestion error came from
func relabel(err error, path string) error {
	var ie *model.IngestionError
	if errors.As(err, &ie) {
		ie.Source = path
	}
	return err
}

// Definitions holds the loaded store and registry with their load errors
type Definitions struct {
	Store       *params.Store
	Registry    *registry.Registry
	StoreErr    error
	RegistryErr error
}

// Err joins the store and registry errors
func (d *Definitions) Err() error {
	return errors.Join(d.StoreErr, d.RegistryErr)
}

// LoadDefinitions loads the parameter and formula files in parallel. Load
// problems are recorded on the result rather than stopping the other file.
func (l *Loader) LoadDefinitions(ctx context.Context, storePath, registryPath string, opts ...params.IngestOption) (*Definitions, error) {
	defs := &Definitions{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		defs.Store, defs.StoreErr = l.LoadParameters(storePath, opts...)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		defs.Registry, defs.RegistryErr = l.LoadFormulas(registryPath)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	return defs, nil
}

// LoadManifests reads manifest files. Each file holds either a manifest
// collection or a single document manifest.
func (l *Loader) LoadManifests(paths []string) ([]model.Manifest, error) {
	var manifests []model.Manifest
	for _, path := range paths {
		data, err := l.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}

		var shape map[string]json.RawMessage
		if err := json.Unmarshal(data, &shape); err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", path, err)
		}

		if _, ok := shape["manifests"]; ok {
			var c model.ManifestCollection
			if err := json.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("decode manifest %s: %w", path, err)
			}
			manifests = append(manifests, c.Manifests...)
			continue
		}

		var m model.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", path, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Document is one file to render
type Document struct {
	Path string // Location on disk
	Name string // Slash-separated path relative to the tree root, used in manifests
}

// DiscoverDocuments lists the documents under root whose extension is in
// exts, sorted by name. A root that is a single file is its own tree. Hidden
// directories and those in skip are not descended into.
func DiscoverDocuments(root string, exts []string, skip ...string) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("document tree: %w", err)
	}
	if !info.IsDir() {
		return []Document{{Path: root, Name: filepath.Base(root)}}, nil
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
				return filepath.SkipDir
			}
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		docs = append(docs, Document{Path: path, Name: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	slices.SortFunc(docs, func(a, b Document) int { return strings.Compare(a.Name, b.Name) })
	return docs, nil
}
