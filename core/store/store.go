// Package store persists the scoring core's inputs and outputs in SQLite:
// the harmonized graph, per-disease evidence, drug records, and materialized
// ranked results keyed by run ID so every row stays reproducible.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/inverno-bio/inverno/core/batch"
	"github.com/inverno-bio/inverno/core/evidence"
	"github.com/inverno-bio/inverno/core/graph"
	"github.com/inverno-bio/inverno/core/rank"
	"github.com/inverno-bio/inverno/core/signature"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id      TEXT PRIMARY KEY,
	type    TEXT NOT NULL DEFAULT 'gene',
	symbol  TEXT,
	species TEXT
);

CREATE TABLE IF NOT EXISTS edges (
	src      TEXT NOT NULL,
	dst      TEXT NOT NULL,
	relation TEXT NOT NULL,
	sign     INTEGER NOT NULL DEFAULT 0,
	direct   INTEGER NOT NULL DEFAULT 0,
	source   TEXT NOT NULL,
	weight   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS edges_src ON edges(src);

CREATE TABLE IF NOT EXISTS seed_evidence (
	disease_id    TEXT NOT NULL,
	gene_id       TEXT NOT NULL,
	evidence_type TEXT NOT NULL,
	score         REAL NOT NULL,
	source        TEXT
);
CREATE INDEX IF NOT EXISTS seed_evidence_disease ON seed_evidence(disease_id);

CREATE TABLE IF NOT EXISTS disease_signatures (
	disease_id TEXT NOT NULL,
	gene_id    TEXT NOT NULL,
	effect     REAL NOT NULL,
	PRIMARY KEY (disease_id, gene_id)
);

CREATE TABLE IF NOT EXISTS drug_targets (
	drug_id   TEXT NOT NULL,
	target_id TEXT NOT NULL,
	action    TEXT NOT NULL DEFAULT 'unknown',
	evidence  REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS drug_targets_drug ON drug_targets(drug_id);

CREATE TABLE IF NOT EXISTS drug_signatures (
	drug_id TEXT NOT NULL,
	context TEXT NOT NULL,
	gene_id TEXT NOT NULL,
	effect  REAL NOT NULL,
	PRIMARY KEY (drug_id, context, gene_id)
);

CREATE TABLE IF NOT EXISTS developability (
	drug_id TEXT PRIMARY KEY,
	score   REAL NOT NULL,
	source  TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	graph      TEXT NOT NULL,
	generation INTEGER NOT NULL,
	params     JSON
);

CREATE TABLE IF NOT EXISTS rankings (
	run_id         TEXT NOT NULL,
	position       INTEGER NOT NULL,
	drug_id        TEXT NOT NULL,
	disease_id     TEXT NOT NULL,
	propagation    REAL,
	developability REAL,
	reversal       REAL,
	fused          REAL,
	interval_low   REAL NOT NULL,
	interval_high  REAL NOT NULL,
	partial        INTEGER NOT NULL DEFAULT 0,
	provenance     JSON,
	PRIMARY KEY (run_id, drug_id, disease_id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS target_scores (
	run_id     TEXT NOT NULL,
	drug_id    TEXT NOT NULL,
	disease_id TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	evidence   REAL NOT NULL,
	relevance  REAL NOT NULL,
	weight     REAL NOT NULL,
	PRIMARY KEY (run_id, drug_id, disease_id, target_id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS signature_scores (
	run_id     TEXT NOT NULL,
	drug_id    TEXT NOT NULL,
	disease_id TEXT NOT NULL,
	context    TEXT NOT NULL,
	tau        REAL NOT NULL,
	overlap    INTEGER NOT NULL,
	up_size    INTEGER NOT NULL,
	down_size  INTEGER NOT NULL,
	PRIMARY KEY (run_id, drug_id, disease_id, context),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
`

// Store wraps a SQLite database holding the pipeline's inputs and runs.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the database at path, enables WAL mode and foreign
// keys, and applies the schema. A nil logger falls back to slog.Default().
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// ImportNodes inserts or replaces node records.
func (s *Store) ImportNodes(ctx context.Context, nodes []graph.Node) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO nodes (id, type, symbol, species) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, n := range nodes {
			if _, err := stmt.ExecContext(ctx, n.ID, n.Type.String(), n.Symbol, n.Species); err != nil {
				return fmt.Errorf("node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// ImportEdges appends interaction records. Parallel edges between the same
// pair are kept; the graph builder collapses them at load time.
func (s *Store) ImportEdges(ctx context.Context, edges []graph.Edge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO edges (src, dst, relation, sign, direct, source, weight)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx,
				e.Src, e.Dst, string(e.Relation), int(e.Sign), e.Direct, e.Source, e.Weight); err != nil {
				return fmt.Errorf("edge %s->%s: %w", e.Src, e.Dst, err)
			}
		}
		return nil
	})
}

// ImportSeedEvidence appends disease-gene evidence records.
func (s *Store) ImportSeedEvidence(ctx context.Context, recs []evidence.SeedEvidence) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO seed_evidence (disease_id, gene_id, evidence_type, score, source)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx,
				r.DiseaseID, r.GeneID, r.EvidenceType, r.Score, r.Source); err != nil {
				return fmt.Errorf("seed %s/%s: %w", r.DiseaseID, r.GeneID, err)
			}
		}
		return nil
	})
}

// ImportDiseaseSignature replaces one disease's expression signature.
func (s *Store) ImportDiseaseSignature(ctx context.Context, sig *signature.DiseaseSignature) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM disease_signatures WHERE disease_id = ?`, sig.DiseaseID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO disease_signatures (disease_id, gene_id, effect) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for gene, effect := range sig.Values {
			if _, err := stmt.ExecContext(ctx, sig.DiseaseID, gene, effect); err != nil {
				return fmt.Errorf("signature %s/%s: %w", sig.DiseaseID, gene, err)
			}
		}
		return nil
	})
}

// ImportDrugTargets appends drug-target records.
func (s *Store) ImportDrugTargets(ctx context.Context, targets []batch.DrugTargetEdge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO drug_targets (drug_id, target_id, action, evidence) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range targets {
			if _, err := stmt.ExecContext(ctx, t.DrugID, t.TargetID, t.Action, t.Evidence); err != nil {
				return fmt.Errorf("target %s/%s: %w", t.DrugID, t.TargetID, err)
			}
		}
		return nil
	})
}

// ImportDrugSignature replaces one drug's perturbational signature in one
// cell context.
func (s *Store) ImportDrugSignature(ctx context.Context, sig *signature.DrugSignature) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM drug_signatures WHERE drug_id = ? AND context = ?`,
			sig.DrugID, sig.Context); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO drug_signatures (drug_id, context, gene_id, effect) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for gene, effect := range sig.Values {
			if _, err := stmt.ExecContext(ctx, sig.DrugID, sig.Context, gene, effect); err != nil {
				return fmt.Errorf("signature %s/%s/%s: %w", sig.DrugID, sig.Context, gene, err)
			}
		}
		return nil
	})
}

// ImportDevelopability inserts or replaces one drug's externally computed
// developability score.
func (s *Store) ImportDevelopability(ctx context.Context, drugID string, score float64, source string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO developability (drug_id, score, source) VALUES (?, ?, ?)`,
		drugID, score, source)
	return err
}

// LoadGraph reads every node and edge and builds the validated graph.
func (s *Store) LoadGraph(ctx context.Context, cfg graph.BuilderConfig) (*graph.Graph, error) {
	b := graph.NewBuilder(cfg)

	rows, err := s.db.QueryContext(ctx, `SELECT id, type, symbol, species FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	for rows.Next() {
		var (
			n   graph.Node
			typ string
		)
		if err := rows.Scan(&n.ID, &typ, &n.Symbol, &n.Species); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if typ == graph.NodeProtein.String() {
			n.Type = graph.NodeProtein
		}
		b.AddNode(n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT src, dst, relation, sign, direct, source, weight FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	for rows.Next() {
		var (
			e    graph.Edge
			rel  string
			sign int
		)
		if err := rows.Scan(&e.Src, &e.Dst, &rel, &sign, &e.Direct, &e.Source, &e.Weight); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Relation = graph.Relation(rel)
		e.Sign = graph.Sign(sign)
		b.AddEdge(e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	s.logger.Info("graph loaded", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

// LoadDiseases assembles the per-disease inputs: seed sets built from the
// stored evidence under opts, plus the expression signature when one exists.
// Diseases are returned in ID order.
func (s *Store) LoadDiseases(ctx context.Context, opts evidence.Options) ([]batch.DiseaseInput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT disease_id, gene_id, evidence_type, score, COALESCE(source, '')
		 FROM seed_evidence`)
	if err != nil {
		return nil, fmt.Errorf("query seed evidence: %w", err)
	}
	byDisease := make(map[string][]evidence.SeedEvidence)
	for rows.Next() {
		var r evidence.SeedEvidence
		if err := rows.Scan(&r.DiseaseID, &r.GeneID, &r.EvidenceType, &r.Score, &r.Source); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan seed evidence: %w", err)
		}
		byDisease[r.DiseaseID] = append(byDisease[r.DiseaseID], r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seed evidence: %w", err)
	}

	ids := make([]string, 0, len(byDisease))
	for id := range byDisease {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	diseases := make([]batch.DiseaseInput, 0, len(ids))
	for _, id := range ids {
		seeds, err := evidence.BuildSeedSet(id, byDisease[id], opts)
		if err != nil {
			return nil, fmt.Errorf("disease %s: %w", id, err)
		}
		sig, err := s.loadDiseaseSignature(ctx, id)
		if err != nil {
			return nil, err
		}
		diseases = append(diseases, batch.DiseaseInput{Seeds: seeds, Signature: sig})
	}
	return diseases, nil
}

func (s *Store) loadDiseaseSignature(ctx context.Context, diseaseID string) (*signature.DiseaseSignature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT gene_id, effect FROM disease_signatures WHERE disease_id = ?`, diseaseID)
	if err != nil {
		return nil, fmt.Errorf("query disease signature %s: %w", diseaseID, err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var (
			gene   string
			effect float64
		)
		if err := rows.Scan(&gene, &effect); err != nil {
			return nil, fmt.Errorf("scan disease signature %s: %w", diseaseID, err)
		}
		values[gene] = effect
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disease signature %s: %w", diseaseID, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return &signature.DiseaseSignature{DiseaseID: diseaseID, Values: values}, nil
}

// LoadDrugs assembles the per-drug inputs: target edges, every stored
// perturbational signature, and the developability score when one exists.
// Drugs are returned in ID order.
func (s *Store) LoadDrugs(ctx context.Context) ([]batch.DrugInput, error) {
	byDrug := make(map[string]*batch.DrugInput)
	drug := func(id string) *batch.DrugInput {
		d, ok := byDrug[id]
		if !ok {
			d = &batch.DrugInput{DrugID: id, Developability: rank.Missing()}
			byDrug[id] = d
		}
		return d
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT drug_id, target_id, action, evidence FROM drug_targets`)
	if err != nil {
		return nil, fmt.Errorf("query drug targets: %w", err)
	}
	for rows.Next() {
		var t batch.DrugTargetEdge
		if err := rows.Scan(&t.DrugID, &t.TargetID, &t.Action, &t.Evidence); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan drug target: %w", err)
		}
		d := drug(t.DrugID)
		d.Targets = append(d.Targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drug targets: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT drug_id, context, gene_id, effect FROM drug_signatures
		 ORDER BY drug_id, context`)
	if err != nil {
		return nil, fmt.Errorf("query drug signatures: %w", err)
	}
	for rows.Next() {
		var (
			drugID, context, gene string
			effect                float64
		)
		if err := rows.Scan(&drugID, &context, &gene, &effect); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan drug signature: %w", err)
		}
		d := drug(drugID)
		if n := len(d.Signatures); n == 0 || d.Signatures[n-1].Context != context {
			d.Signatures = append(d.Signatures, signature.DrugSignature{
				DrugID:  drugID,
				Context: context,
				Values:  make(map[string]float64),
			})
		}
		d.Signatures[len(d.Signatures)-1].Values[gene] = effect
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drug signatures: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT drug_id, score, COALESCE(source, '') FROM developability`)
	if err != nil {
		return nil, fmt.Errorf("query developability: %w", err)
	}
	for rows.Next() {
		var (
			drugID, source string
			score          float64
		)
		if err := rows.Scan(&drugID, &score, &source); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan developability: %w", err)
		}
		d := drug(drugID)
		dev, err := rank.New(score)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("developability %s: %w", drugID, err)
		}
		d.Developability = dev
		d.DevelopabilitySource = source
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate developability: %w", err)
	}

	ids := make([]string, 0, len(byDrug))
	for id := range byDrug {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	drugs := make([]batch.DrugInput, 0, len(ids))
	for _, id := range ids {
		drugs = append(drugs, *byDrug[id])
	}
	return drugs, nil
}

// MaterializeRun writes one finished batch: the run row with its parameters,
// every ranked pair in presentation order, and the per-target and per-context
// breakdowns behind each pair. The whole write is one transaction so a run is
// either fully materialized or absent.
func (s *Store) MaterializeRun(ctx context.Context, res *batch.Result, params any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode run params: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, graph, generation, params)
			 VALUES (?, ?, ?, ?, ?)`,
			res.Run.RunID, res.Run.StartedAt, res.Run.Graph, res.Run.Generation,
			string(paramsJSON)); err != nil {
			return fmt.Errorf("insert run %s: %w", res.Run.RunID, err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO rankings (run_id, position, drug_id, disease_id,
				propagation, developability, reversal, fused,
				interval_low, interval_high, partial, provenance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		targetStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO target_scores (run_id, drug_id, disease_id, target_id,
				action, evidence, relevance, weight)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer targetStmt.Close()
		contextStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO signature_scores (run_id, drug_id, disease_id, context,
				tau, overlap, up_size, down_size)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer contextStmt.Close()
		for i, r := range res.Results {
			provJSON, err := json.Marshal(r.Provenance)
			if err != nil {
				return fmt.Errorf("encode provenance %s/%s: %w", r.DrugID, r.DiseaseID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				res.Run.RunID, i+1, r.DrugID, r.DiseaseID,
				nullable(r.Components.Propagation),
				nullable(r.Components.Developability),
				nullable(r.Components.Reversal),
				nullable(r.Fused),
				r.Interval.Low, r.Interval.High, r.PartialEvidence,
				string(provJSON)); err != nil {
				return fmt.Errorf("insert ranking %s/%s: %w", r.DrugID, r.DiseaseID, err)
			}
			if p := r.Provenance.Propagation; p != nil {
				for _, t := range p.Targets {
					if _, err := targetStmt.ExecContext(ctx,
						res.Run.RunID, r.DrugID, r.DiseaseID, t.TargetID,
						t.Action, t.Evidence, t.Relevance, t.Weight); err != nil {
						return fmt.Errorf("insert target score %s/%s/%s: %w",
							r.DrugID, r.DiseaseID, t.TargetID, err)
					}
				}
			}
			if rev := r.Provenance.Reversal; rev != nil {
				for _, c := range rev.Contexts {
					if _, err := contextStmt.ExecContext(ctx,
						res.Run.RunID, r.DrugID, r.DiseaseID, c.Context,
						c.Tau, c.Overlap, c.UpSize, c.DownSize); err != nil {
						return fmt.Errorf("insert signature score %s/%s/%s: %w",
							r.DrugID, r.DiseaseID, c.Context, err)
					}
				}
			}
		}
		return nil
	})
}

// RankedRow is one materialized ranking row read back for presentation.
type RankedRow struct {
	Position  int
	DrugID    string
	DiseaseID string
	Fused     rank.Score
	Low, High float64
	Partial   bool
}

// LoadRanking reads one run's ranked rows in presentation order. limit <= 0
// returns every row.
func (s *Store) LoadRanking(ctx context.Context, runID string, limit int) ([]RankedRow, error) {
	q := `SELECT position, drug_id, disease_id, fused, interval_low, interval_high, partial
	      FROM rankings WHERE run_id = ? ORDER BY position`
	args := []any{runID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ranking %s: %w", runID, err)
	}
	defer rows.Close()

	var out []RankedRow
	for rows.Next() {
		var (
			r     RankedRow
			fused sql.NullFloat64
		)
		if err := rows.Scan(&r.Position, &r.DrugID, &r.DiseaseID, &fused, &r.Low, &r.High, &r.Partial); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		if fused.Valid {
			r.Fused = rank.MustNew(fused.Float64)
		} else {
			r.Fused = rank.Missing()
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranking %s: %w", runID, err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullable(sc rank.Score) sql.NullFloat64 {
	if v, ok := sc.Value(); ok {
		return sql.NullFloat64{Float64: v, Valid: true}
	}
	return sql.NullFloat64{}
}
