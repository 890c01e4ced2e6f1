// Package harvest defines the core types and collaborator interfaces shared by
// the discovery, extraction, worker and normalization subsystems of the
// courthouse harvester.
package harvest
