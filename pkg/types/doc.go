// Package types defines the shared domain model for the contract-analysis
// pipeline: jobs, checkpoints, analysis results, processed markers, and
// dead-letter entries.
//
// The pipeline turns an uploaded contract file into a structured analysis
// (clauses and risk scores) through a fixed stage sequence:
//
//	hash check -> idempotency guard -> text extraction -> chunking ->
//	embedding -> reasoning -> result persistence
//
// A Checkpoint is recorded after every stage, so a partially processed
// contract leaves an auditable, strictly ordered trail. Jobs that exhaust
// their queue-level attempt budget end up as DeadLetterEntry records,
// preserving enough data to resubmit.
package types
