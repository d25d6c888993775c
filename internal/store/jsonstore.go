package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

// ErrCorruptDataset indicates the backing file exists but does not hold a
// parseable dataset. Callers must abort rather than continue with an empty
// dataset, or the next save would silently wipe the file.
var ErrCorruptDataset = errors.New("dataset file is corrupt")

// Store is the single component touching durable storage. The whole dataset
// is the unit of load and save.
type Store interface {
	Load(ctx context.Context) (models.Dataset, error)
	Save(ctx context.Context, dataset models.Dataset) error
}

const datasetSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"properties": {
			"password": {"type": "string"},
			"forcePasswordChange": {"type": "boolean"},
			"milestones": {
				"type": "object",
				"additionalProperties": {"type": "boolean"}
			},
			"remarks": {"type": "string"},
			"rpr": {
				"type": "object",
				"additionalProperties": {"$ref": "#/$defs/entry"}
			},
			"aps": {
				"type": "object",
				"additionalProperties": {"$ref": "#/$defs/entry"}
			}
		}
	},
	"$defs": {
		"entry": {
			"type": "object",
			"required": ["date", "completed"],
			"properties": {
				"date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
				"completed": {"type": "boolean"}
			}
		}
	}
}`

// JSONStore persists the dataset as one JSON document on disk. Saves go
// through a temp file and an atomic rename so a concurrent reader never
// observes a partial write.
type JSONStore struct {
	path   string
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewJSONStore builds a store bound to the given file path.
func NewJSONStore(path string, logger zerolog.Logger) (*JSONStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dataset path must not be empty")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("dataset.schema.json", strings.NewReader(datasetSchema)); err != nil {
		return nil, fmt.Errorf("failed to register dataset schema: %w", err)
	}
	schema, err := compiler.Compile("dataset.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile dataset schema: %w", err)
	}

	return &JSONStore{
		path:   path,
		schema: schema,
		logger: logger.With().Str("component", "json_store").Logger(),
	}, nil
}

// Load reads the whole dataset. A missing file yields an empty dataset; a
// present but unparseable file fails loudly with ErrCorruptDataset.
func (s *JSONStore) Load(ctx context.Context) (models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("path", s.path).Msg("dataset file absent, starting empty")
			return models.Dataset{}, nil
		}
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(payload, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDataset, err)
	}
	if err := s.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDataset, err)
	}

	var dataset models.Dataset
	if err := json.Unmarshal(payload, &dataset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDataset, err)
	}
	if dataset == nil {
		dataset = models.Dataset{}
	}

	return dataset, nil
}

// Save writes the complete dataset atomically.
func (s *JSONStore) Save(ctx context.Context, dataset models.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp dataset file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp dataset file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Int("students", len(dataset)).Msg("dataset saved")

	return nil
}
