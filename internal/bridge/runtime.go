package bridge

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chatvault/core/internal/logging"
)

// runtime is the isolated execution context: a single goroutine that owns
// the SQLite connection and applies requests in arrival order. Nothing
// outside this file touches the *sql.DB.
type runtime struct {
	dsn      string
	deliver  func(response)
	requests chan request
	done     chan struct{}
	stopped  chan struct{}

	db *sql.DB
}

func newRuntime(dsn string, deliver func(response)) *runtime {
	return &runtime{
		dsn:      dsn,
		deliver:  deliver,
		requests: make(chan request, 32),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// post hands a request to the runtime. It fails if the runtime has shut
// down; it never blocks longer than the channel buffer allows.
func (rt *runtime) post(req request) error {
	select {
	case <-rt.done:
		return fmt.Errorf("bridge: worker stopped")
	case rt.requests <- req:
		return nil
	}
}

func (rt *runtime) close() error {
	close(rt.done)
	<-rt.stopped
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

func (rt *runtime) loop() {
	defer close(rt.stopped)
	for {
		select {
		case <-rt.done:
			return
		case req := <-rt.requests:
			rt.deliver(rt.handle(req))
		}
	}
}

func (rt *runtime) handle(req request) response {
	switch req.Kind {
	case RequestInitialize:
		if err := rt.initialize(); err != nil {
			return response{ID: req.ID, Err: err}
		}
		return response{ID: req.ID, Success: true}

	case RequestQuery:
		rows, err := rt.query(req.Stmt)
		if err != nil {
			return response{ID: req.ID, Err: err}
		}
		return response{ID: req.ID, Success: true, Rows: rows}

	case RequestRun:
		result, err := rt.run(req.Stmt)
		if err != nil {
			return response{ID: req.ID, Err: err}
		}
		return response{ID: req.ID, Success: true, Result: result}

	case RequestTransaction:
		if err := rt.transaction(req.Ops); err != nil {
			return response{ID: req.ID, Err: err}
		}
		return response{ID: req.ID, Success: true}

	default:
		return response{ID: req.ID, Err: fmt.Errorf("bridge: unknown request kind %q", req.Kind)}
	}
}

// initialize opens the database and brings the schema up to date. Safe to
// call again after a recovery-driven restart.
func (rt *runtime) initialize() error {
	if rt.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", rt.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer; the runtime is single-threaded anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return fmt.Errorf("migration failed: %w", err)
	}

	rt.db = db
	return nil
}

func (rt *runtime) query(stmt Statement) ([]Row, error) {
	if rt.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := rt.db.Query(stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (rt *runtime) run(stmt Statement) (*RunResult, error) {
	if rt.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	res, err := rt.db.Exec(stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, err
	}

	changes, err := res.RowsAffected()
	if err != nil {
		changes = 0
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		lastID = 0
	}
	return &RunResult{Changes: changes, LastInsertID: lastID}, nil
}

func (rt *runtime) transaction(ops []Statement) error {
	if rt.db == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := rt.db.Begin()
	if err != nil {
		return err
	}

	for _, op := range ops {
		if _, err := tx.Exec(op.SQL, op.Params...); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("transaction rollback failed", rbErr)
			}
			return err
		}
	}
	return tx.Commit()
}
