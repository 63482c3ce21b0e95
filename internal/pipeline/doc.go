// Package pipeline turns feed messages into ingest records.
//
// Each message moves through Scanning, Resolving, Classifying, Ingesting and
// Recording to Done, or straight from Scanning to Skipped when it carries no
// qualifying link. Messages are processed one at a time in feed order, and a
// failure in one message never stops the batch.
package pipeline
