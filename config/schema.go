package config

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema constrains structural properties the Go-level Validate
// method does not cover, such as numeric ranges and string formats.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "device": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"}
      }
    },
    "nats": {
      "type": "object",
      "properties": {
        "url": {"type": "string", "pattern": "^nats://"},
        "max_reconnects": {"type": "integer", "minimum": -1}
      }
    },
    "kafka": {
      "type": "object",
      "properties": {
        "brokers": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "topic": {"type": "string"},
        "group_id": {"type": "string"},
        "partitions": {"type": "integer", "minimum": 1, "maximum": 1024},
        "min_bytes": {"type": "integer", "minimum": 0},
        "max_bytes": {"type": "integer", "minimum": 0}
      }
    },
    "ingest": {
      "type": "object",
      "properties": {
        "checkpoint_batch": {"type": "integer", "minimum": 1},
        "persist_throttle": {"type": "integer", "minimum": 1}
      }
    },
    "store": {
      "type": "object",
      "properties": {
        "readings_bucket": {"type": "string"},
        "thresholds_bucket": {"type": "string"},
        "device_bucket": {"type": "string"}
      }
    },
    "notify": {
      "type": "object",
      "properties": {
        "addr": {"type": "string"},
        "rate_per_second": {"type": "number", "minimum": 0},
        "rate_burst": {"type": "integer", "minimum": 0}
      }
    },
    "metrics": {
      "type": "object",
      "properties": {
        "addr": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["json", "text"]}
      }
    }
  }
}`

// ValidateDocument validates a configuration against the JSON schema
func ValidateDocument(cfg *Config) error {
	docBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewBytesLoader(docBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		errMsg := "config schema validation failed:\n"
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("  - %s: %s\n", desc.Field(), desc.Description())
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
