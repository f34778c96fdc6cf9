// Package bridge hides the fact that persistent storage lives in an
// isolated execution context. Callers submit typed operations (query, run,
// multi-statement transaction) which are posted to a storage runtime
// goroutine owning the SQLite connection; responses are correlated back to
// the pending request by unique id, with a fixed timeout per request.
package bridge

// RequestKind identifies a bridge request.
type RequestKind string

const (
	RequestInitialize  RequestKind = "INITIALIZE"
	RequestQuery       RequestKind = "QUERY"
	RequestRun         RequestKind = "RUN"
	RequestTransaction RequestKind = "TRANSACTION"
)

// Statement is one SQL statement with its bind parameters.
type Statement struct {
	SQL    string
	Params []interface{}
}

// Row is one result row keyed by column name.
type Row map[string]interface{}

// RunResult reports the outcome of a mutating statement.
type RunResult struct {
	Changes      int64
	LastInsertID int64
}

// request is the message posted to the storage runtime.
type request struct {
	ID   string
	Kind RequestKind
	Stmt Statement   // QUERY / RUN
	Ops  []Statement // TRANSACTION
}

// response is the message the runtime posts back. Exactly one response is
// produced per request; responses whose id matches no pending entry are
// dropped.
type response struct {
	ID      string
	Success bool
	Err     error
	Rows    []Row
	Result  *RunResult
}
