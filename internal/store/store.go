package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/emosense/authd/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("not found")
	errUnknownDriver = errors.New("unknown storage driver")
)

// Store is the durable string key-value store backing session state.
// Values for structured records are JSON-encoded by the caller.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Params struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

// New selects the store driver from config.
func New(p Params) (Store, error) {
	switch p.Config.Storage.Driver {
	case config.DriverSQLite:
		return newSQLite(p)
	case config.DriverJSON:
		return newJSON(p)
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownDriver, p.Config.Storage.Driver)
	}
}
