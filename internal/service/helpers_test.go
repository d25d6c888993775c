package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// memStore is an in-memory stand-in for the JSON dataset store.
type memStore struct {
	data    models.Dataset
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (models.Dataset, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return models.Dataset{}, nil
	}
	return m.data.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, dataset models.Dataset) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = dataset.Clone()
	m.saves++
	return nil
}
