package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, name, base_price, min_price, max_discount, inventory, active, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		a.ID, a.Name,
		a.BasePrice.String(), a.MinPrice.String(), a.MaxDiscount.String(),
		a.Inventory, a.Active, a.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var a model.Asset
	var basePrice, minPrice, maxDiscount string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name,
		        base_price::TEXT, min_price::TEXT, max_discount::TEXT,
		        inventory, active, created_at
		 FROM assets WHERE id = $1`, id).
		Scan(&a.ID, &a.Name,
			&basePrice, &minPrice, &maxDiscount,
			&a.Inventory, &a.Active, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}

	a.BasePrice, _ = decimal.NewFromString(basePrice)
	a.MinPrice, _ = decimal.NewFromString(minPrice)
	a.MaxDiscount, _ = decimal.NewFromString(maxDiscount)

	return &a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name,
		        base_price::TEXT, min_price::TEXT, max_discount::TEXT,
		        inventory, active, created_at
		 FROM assets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		var basePrice, minPrice, maxDiscount string
		if err := rows.Scan(&a.ID, &a.Name,
			&basePrice, &minPrice, &maxDiscount,
			&a.Inventory, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.BasePrice, _ = decimal.NewFromString(basePrice)
		a.MinPrice, _ = decimal.NewFromString(minPrice)
		a.MaxDiscount, _ = decimal.NewFromString(maxDiscount)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) UpdateAssetInventory(ctx context.Context, id string, inventory int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE assets SET inventory = $2 WHERE id = $1`,
		id, inventory,
	)
	return err
}

func (s *PostgresStore) InsertDeal(ctx context.Context, d *model.Deal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deals (id, asset_id, agent_address, volume, price, tx_ref, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		d.ID, d.AssetID, d.AgentAddress, d.Volume,
		d.Price.String(), d.TxRef, d.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListDealsByAsset(ctx context.Context, assetID string) ([]model.Deal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_id, agent_address, volume, price::TEXT, tx_ref, timestamp
		 FROM deals WHERE asset_id = $1 ORDER BY timestamp`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDeals(rows)
}

func (s *PostgresStore) ListDealsByAgent(ctx context.Context, agentAddress string) ([]model.Deal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_id, agent_address, volume, price::TEXT, tx_ref, timestamp
		 FROM deals WHERE agent_address = $1 ORDER BY timestamp`, agentAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDeals(rows)
}

func (s *PostgresStore) GetAgentHoldings(ctx context.Context, agentAddress string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, COALESCE(SUM(volume), 0)
		 FROM deals WHERE agent_address = $1
		 GROUP BY asset_id`, agentAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := make(map[string]int64)
	for rows.Next() {
		var assetID string
		var units int64
		if err := rows.Scan(&assetID, &units); err != nil {
			return nil, err
		}
		holdings[assetID] = units
	}
	return holdings, rows.Err()
}

// scanDeals reads pgx rows into Deal slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanDeals(rows pgxRows) ([]model.Deal, error) {
	var deals []model.Deal
	for rows.Next() {
		var d model.Deal
		var priceS string

		if err := rows.Scan(&d.ID, &d.AssetID, &d.AgentAddress, &d.Volume,
			&priceS, &d.TxRef, &d.Timestamp); err != nil {
			return nil, err
		}

		d.Price, _ = decimal.NewFromString(priceS)
		deals = append(deals, d)
	}
	return deals, nil
}
