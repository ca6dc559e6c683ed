// Package warehouse adapts the seller-data feed. Deployments drop one JSON
// snapshot per seller into a directory; the copilot reads them on demand so
// a refreshed file is picked up on the next request without a restart.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog/log"

	contractx "sellerpilot/agent/contract"
)

// Config locates the snapshot directory.
type Config struct {
	DataDir string `envconfig:"DATA_DIR" default:"./data/warehouse"`
}

// FileWarehouse serves snapshots from per-seller JSON files.
type FileWarehouse struct {
	dir string
}

var _ contractx.Warehouse = (*FileWarehouse)(nil)

func New(cfg Config) *FileWarehouse {
	return &FileWarehouse{dir: cfg.DataDir}
}

// sellerIDPattern guards against path escapes in seller identifiers.
var sellerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Snapshot loads the seller's snapshot file. An unknown or absent seller
// falls back to default.json, and an empty snapshot if that is missing too;
// analysis still works, just without seller specifics.
func (w *FileWarehouse) Snapshot(ctx context.Context, sellerID string) (contractx.WarehouseSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return contractx.WarehouseSnapshot{}, err
	}

	if sellerID != "" {
		if !sellerIDPattern.MatchString(sellerID) {
			return contractx.WarehouseSnapshot{}, fmt.Errorf("%w: malformed seller id %q", contractx.ErrInvalidInput, sellerID)
		}
		snap, err := w.read(filepath.Join(w.dir, sellerID+".json"))
		if err == nil {
			snap.Profile.SellerID = sellerID
			return snap, nil
		}
		if !os.IsNotExist(err) {
			return contractx.WarehouseSnapshot{}, err
		}
		log.Debug().Str("seller_id", sellerID).Msg("no seller snapshot, using default")
	}

	snap, err := w.read(filepath.Join(w.dir, "default.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return contractx.WarehouseSnapshot{}, nil
		}
		return contractx.WarehouseSnapshot{}, err
	}
	snap.Profile.SellerID = sellerID
	return snap, nil
}

func (w *FileWarehouse) read(path string) (contractx.WarehouseSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return contractx.WarehouseSnapshot{}, err
	}
	var snap contractx.WarehouseSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return contractx.WarehouseSnapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}
