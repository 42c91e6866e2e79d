// Package app wires application dependencies for the server and the CLI.
//
// It builds the geocoder chain (Google client, optional PostgreSQL cache,
// paced batch), the metrics collector and the pipeline from a loaded
// config.Config, exposing them via the Wire struct.
package app
