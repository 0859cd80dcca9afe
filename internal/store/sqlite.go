package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/timeseries"
	"github.com/nvandessel/cascadelab/internal/topology"
)

// timeLayout keeps a fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteResultStore implements ResultStore on a SQLite database file.
type SQLiteResultStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteResultStore opens (or creates) the database at dbPath, creating
// parent directories as needed.
func NewSQLiteResultStore(dbPath string) (*SQLiteResultStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteResultStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteResultStore) Path() string {
	return s.dbPath
}

// SaveExperiment stores exp and all of its series in one transaction.
func (s *SQLiteResultStore) SaveExperiment(ctx context.Context, exp *Experiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment ID is required")
	}

	topoJSON, err := json.Marshal(exp.Topology)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}
	cascadeJSON, err := json.Marshal(exp.Cascade)
	if err != nil {
		return fmt.Errorf("failed to marshal cascade config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children cascade on delete.
	if _, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, exp.ID); err != nil {
		return fmt.Errorf("failed to replace experiment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO experiments (id, created_at, topology_kind, nodes, topology, attribute_mode, cascade_config, iterations, seed, runs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.CreatedAt.UTC().Format(timeLayout), string(exp.Topology.Kind), exp.Topology.Nodes,
		string(topoJSON), exp.AttributeMode, string(cascadeJSON), exp.Cascade.Iterations, exp.Cascade.Seed, exp.Runs)
	if err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}

	for name, v := range exp.Metrics.Map() {
		var value sql.NullFloat64
		switch x := v.(type) {
		case float64:
			value = sql.NullFloat64{Float64: x, Valid: true}
		case int:
			value = sql.NullFloat64{Float64: float64(x), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metrics (experiment_id, name, value) VALUES (?, ?, ?)`,
			exp.ID, name, value); err != nil {
			return fmt.Errorf("failed to insert metric %s: %w", name, err)
		}
	}

	for i, r := range exp.TimeSeries {
		var reached, newly sql.NullInt64
		var proportion sql.NullFloat64
		if i < len(exp.Reach) {
			reached = sql.NullInt64{Int64: int64(exp.Reach[i].TotalReached), Valid: true}
			proportion = sql.NullFloat64{Float64: exp.Reach[i].ProportionReached, Valid: true}
			newly = sql.NullInt64{Int64: int64(exp.Reach[i].NewlyReached), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO timeseries (experiment_id, iteration, broadcasters, mean_responses, max_responses,
				std_responses, total_responses, total_reached, proportion_reached, newly_reached)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			exp.ID, r.Iteration, r.Broadcasters, r.MeanResponses, r.MaxResponses,
			r.StdResponses, r.TotalResponses, reached, proportion, newly); err != nil {
			return fmt.Errorf("failed to insert timeseries row %d: %w", r.Iteration, err)
		}
	}

	for i, o := range exp.Outcomes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (experiment_id, run, seed, reach) VALUES (?, ?, ?, ?)`,
			exp.ID, i, montecarlo.RunSeed(exp.Cascade.Seed, i), o); err != nil {
			return fmt.Errorf("failed to insert outcome %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetExperiment loads an experiment with its metrics and series.
func (s *SQLiteResultStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		exp         Experiment
		createdAt   string
		topoJSON    string
		cascadeJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, topology, attribute_mode, cascade_config, runs
		FROM experiments WHERE id = ?`, id).
		Scan(&exp.ID, &createdAt, &topoJSON, &exp.AttributeMode, &cascadeJSON, &exp.Runs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query experiment: %w", err)
	}

	if exp.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(topoJSON), &exp.Topology); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topology: %w", err)
	}
	if err := json.Unmarshal([]byte(cascadeJSON), &exp.Cascade); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cascade config: %w", err)
	}

	if exp.Metrics, err = s.loadMetrics(ctx, id); err != nil {
		return nil, err
	}
	if exp.TimeSeries, exp.Reach, err = s.loadTimeSeries(ctx, id); err != nil {
		return nil, err
	}
	if exp.Outcomes, err = s.loadOutcomes(ctx, id); err != nil {
		return nil, err
	}
	exp.Distribution = montecarlo.Summarize(exp.Outcomes)

	return &exp, nil
}

func (s *SQLiteResultStore) loadMetrics(ctx context.Context, id string) (metrics.Metrics, error) {
	m := metrics.Metrics{Assortativity: math.NaN()}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM metrics WHERE experiment_id = ?`, id)
	if err != nil {
		return m, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value sql.NullFloat64
		if err := rows.Scan(&name, &value); err != nil {
			return m, fmt.Errorf("failed to scan metric: %w", err)
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		setMetric(&m, name, v)
	}
	return m, rows.Err()
}

// setMetric assigns a metric by its JSON name. Unknown names are ignored.
func setMetric(m *metrics.Metrics, name string, v float64) {
	switch name {
	case "nodes":
		m.Nodes = int(v)
	case "edges":
		m.Edges = int(v)
	case "avg_degree":
		m.AvgDegree = v
	case "max_degree":
		m.MaxDegree = v
	case "degree_gini":
		m.DegreeGini = v
	case "top_1pct_edge_share":
		m.TopEdgeShare = v
	case "avg_clustering":
		m.AvgClustering = v
	case "degree_assortativity":
		m.Assortativity = v
	}
}

func (s *SQLiteResultStore) loadTimeSeries(ctx context.Context, id string) ([]timeseries.Row, []timeseries.ReachRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, broadcasters, mean_responses, max_responses, std_responses, total_responses,
			total_reached, proportion_reached, newly_reached
		FROM timeseries WHERE experiment_id = ? ORDER BY iteration`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query timeseries: %w", err)
	}
	defer rows.Close()

	series := make([]timeseries.Row, 0)
	reach := make([]timeseries.ReachRow, 0)
	for rows.Next() {
		var r timeseries.Row
		var reached, newly sql.NullInt64
		var proportion sql.NullFloat64
		if err := rows.Scan(&r.Iteration, &r.Broadcasters, &r.MeanResponses, &r.MaxResponses,
			&r.StdResponses, &r.TotalResponses, &reached, &proportion, &newly); err != nil {
			return nil, nil, fmt.Errorf("failed to scan timeseries row: %w", err)
		}
		series = append(series, r)
		if reached.Valid {
			reach = append(reach, timeseries.ReachRow{
				Iteration:         r.Iteration,
				TotalReached:      int(reached.Int64),
				ProportionReached: proportion.Float64,
				NewlyReached:      int(newly.Int64),
			})
		}
	}
	return series, reach, rows.Err()
}

func (s *SQLiteResultStore) loadOutcomes(ctx context.Context, id string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reach FROM outcomes WHERE experiment_id = ? ORDER BY run`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]float64, 0)
	for rows.Next() {
		var reach float64
		if err := rows.Scan(&reach); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, reach)
	}
	return outcomes, rows.Err()
}

// ListExperiments returns experiment summaries, newest first.
func (s *SQLiteResultStore) ListExperiments(ctx context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT e.id, e.created_at, e.topology_kind, e.nodes, e.iterations, e.runs,
			COALESCE((SELECT t.total_reached FROM timeseries t
				WHERE t.experiment_id = e.id ORDER BY t.iteration DESC LIMIT 1), 0),
			COALESCE((SELECT AVG(o.reach) FROM outcomes o WHERE o.experiment_id = e.id), 0)
		FROM experiments e
		ORDER BY e.created_at DESC, e.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		var createdAt, kind string
		if err := rows.Scan(&sum.ID, &createdAt, &kind, &sum.Nodes, &sum.Iterations, &sum.Runs,
			&sum.FinalReach, &sum.MeanReach); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		sum.Topology = topology.Kind(kind)
		if sum.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// DeleteExperiment removes an experiment and its series.
func (s *SQLiteResultStore) DeleteExperiment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
