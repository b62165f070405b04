// Package engine implements the run/step execution engine: the state
// machine that advances a generation run through its ordered steps,
// invokes the pluggable generation provider, records the LLM call ledger,
// handles human approval and override, and commits produced chapter text
// versions transactionally alongside chapter state updates.
//
// Every external trigger (create, resume, approve, override) drives the
// run to its next stable state - a state from which no further automatic
// progress is possible without external input - inside one store
// transaction, then returns. There are no background workers and no
// automatic retries; all recovery is by human action or a new run.
package engine
