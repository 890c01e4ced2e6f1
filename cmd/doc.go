// Package cmd implements the harvester command line.
//
// Architecture overview:
//   - Discovery: one strategy (sitemap, listing, rest, graphql, records) lazily yields record sources. JSON
//     strategies go through the resty fetcher, HTML and XML through the colly fetcher.
//   - Dispatcher & queue: sources become indexed jobs on a bounded in-memory queue drained by a fixed worker pool
//     sized by harvest.concurrency. A concurrency of 1 is the sequential baseline.
//   - Workers: inline sources are collected as-is; URL sources are fetched with retry and exponential backoff,
//     followed by a politeness pause, then run through the structured → selector → heuristic extraction chain.
//   - Normalization: listing mode groups by city and disambiguates cities with several addresses; detail mode
//     dedupes by URL in discovery order.
//   - Output: the dataset is always written (an empty array on failure) to a local file, GCS, or memory for dry
//     runs. A Pub/Sub run summary and a Pushgateway push are optional.
//
// Quick checklist:
//   - Configure env vars: HARVESTER_HARVEST_MODE, HARVESTER_HARVEST_CONCURRENCY, HARVESTER_DISCOVERY_STRATEGY,
//     HARVESTER_DISCOVERY_REST_URL, HARVESTER_OUTPUT_PATH or HARVESTER_OUTPUT_GCS_BUCKET, HARVESTER_NOTIFY_TOPIC.
//   - Run locally: go run . harvest --config harvester.yaml (or rely solely on env overrides).
//   - Exit status is 1 when discovery found nothing, the run was interrupted, or the artifact could not be written.
package cmd
