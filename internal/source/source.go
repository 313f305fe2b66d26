package source

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/storage"
)

// Source kinds accepted by New.
const (
	KindSeed = "seed"
	KindFile = "file"
	KindWiki = "wiki"
)

// Source supplies raw catalog records. Fetch never fails loudly: any problem
// is logged and reported as an empty result.
type Source interface {
	Fetch(ctx context.Context) []profile.Record
	Name() string
}

//go:embed seed_catalog.yaml
var seedCatalog []byte

// StaticSource serves records decoded from a YAML (or JSON) document.
type StaticSource struct {
	name   string
	load   func() ([]byte, error)
	logger *logrus.Entry
}

// NewSeedSource returns the built-in sample catalog.
func NewSeedSource(logger *logrus.Entry) *StaticSource {
	return &StaticSource{
		name:   KindSeed,
		load:   func() ([]byte, error) { return seedCatalog, nil },
		logger: componentLogger(logger, "seed_source"),
	}
}

// NewFileSource reads the catalog from path on every fetch.
func NewFileSource(path string, logger *logrus.Entry) *StaticSource {
	return &StaticSource{
		name:   KindFile,
		load:   func() ([]byte, error) { return os.ReadFile(path) },
		logger: componentLogger(logger, "file_source").WithField("path", path),
	}
}

func (s *StaticSource) Name() string {
	return s.name
}

// Fetch decodes the document. A missing or invalid document yields no records.
func (s *StaticSource) Fetch(ctx context.Context) []profile.Record {
	if ctx.Err() != nil {
		return nil
	}
	data, err := s.load()
	if err != nil {
		s.logger.WithError(err).Error("Failed to read catalog")
		return nil
	}
	records, err := DecodeRecords(data)
	if err != nil {
		s.logger.WithError(err).Error("Failed to decode catalog")
		return nil
	}
	return records
}

// DecodeRecords parses a YAML or JSON list of records.
func DecodeRecords(data []byte) ([]profile.Record, error) {
	var records []profile.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return records, nil
}

// New builds the source named by kind. cache is only used by the wiki source.
func New(kind string, cfg *config.Config, cache storage.RecordStorage, logger *logrus.Entry) (Source, error) {
	switch kind {
	case KindSeed:
		return NewSeedSource(logger), nil
	case KindFile:
		if cfg.Catalog.File == "" {
			return nil, fmt.Errorf("file source requires a catalog file path")
		}
		return NewFileSource(cfg.Catalog.File, logger), nil
	case KindWiki:
		return NewWikiSource(cfg.Wiki, cache, logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %q", kind)
	}
}

func componentLogger(logger *logrus.Entry, component string) *logrus.Entry {
	if logger == nil {
		return logrus.WithField("component", component)
	}
	return logger.WithField("component", component)
}
