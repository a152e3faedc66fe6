// Package config loads and validates the daemon configuration.
//
// Configuration is assembled from layers: built-in defaults, then one or
// more config files (JSON or YAML, merged deepest-key-wins), then
// environment variable overrides with the SHFT_ prefix. The merged document
// is validated twice, first structurally against a JSON schema and then
// semantically by Config.Validate.
//
// Example:
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/shft/config.yaml")
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Duration fields accept Go duration strings ("30s", "2m") plus a day
// suffix ("1d") in config files; in JSON they may also appear as raw
// nanosecond numbers.
package config
