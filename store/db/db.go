package db

import (
	"github.com/pkg/errors"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/store"
	"github.com/memoraai/memora/store/db/elastic"
	"github.com/memoraai/memora/store/db/postgres"
)

// NewDriver creates a new memory store driver based on profile.
//
// Elasticsearch is the primary backend: it can express the filtered
// lexical + kNN query in a single request and offers native rank fusion.
// Postgres (pgvector + tsvector) is supported as an alternative; it has no
// native fusion, so its hybrid search fuses client-side.
func NewDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "elastic":
		driver, err = elastic.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown memory store driver %q: only 'elastic' and 'postgres' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memory store driver")
	}
	return driver, nil
}
