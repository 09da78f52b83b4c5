package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fyrsmithlabs/knowledged/internal/config"
)

// Tx runs statements inside one transaction. A mid-sequence failure
// rolls the whole transaction back.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// runner abstracts the database driver so adapter logic is testable
// without a live database.
type runner interface {
	Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, work func(tx Tx) error) error
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// neo4jRunner implements runner over the Bolt driver.
type neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// newNeo4jRunner connects to the configured database.
func newNeo4jRunner(cfg config.GraphConfig) (*neo4jRunner, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password.Value(), ""))
	if err != nil {
		return nil, fmt.Errorf("creating driver: %w", err)
	}
	return &neo4jRunner{driver: driver, database: cfg.Database}, nil
}

func (r *neo4jRunner) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
}

func (r *neo4jRunner) Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}
	return records.([]map[string]any), nil
}

func (r *neo4jRunner) Write(ctx context.Context, work func(tx Tx) error) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(managedTx{ctx: ctx, tx: tx})
	})
	return err
}

func (r *neo4jRunner) VerifyConnectivity(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// managedTx adapts a driver transaction to the Tx interface.
type managedTx struct {
	ctx context.Context
	tx  neo4j.ManagedTransaction
}

func (t managedTx) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return collect(ctx, t.tx, cypher, params)
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	raw, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]map[string]any, len(raw))
	for i, rec := range raw {
		records[i] = rec.AsMap()
	}
	return records, nil
}
