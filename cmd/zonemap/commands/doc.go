// Package commands defines the zonemap CLI.
//
// Commands
//
//   - assign          Geocode a family registry and split it between two owners
//   - config set-key  Store the geocoding API key in the config file
//   - version         Print the build version
//
// # Implementation
//
// The root command loads the configuration and installs the logger before
// any subcommand runs. Commands that talk to the geocoder build the shared
// dependency graph from internal/app on demand, so config commands work
// without a valid API key.
package commands
