// Package collector defines the domain types, collaborator interfaces and error
// taxonomy shared by the feed collection pipeline.
//
// Data flows strictly downward: the pipeline orchestrator drives the page resolver
// (which owns browsing sessions and humanization), the category extractor and the
// media ingestor. None of those components call back into the orchestrator.
package collector
