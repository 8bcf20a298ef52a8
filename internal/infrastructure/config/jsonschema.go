package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
)

const schemaFileName = "config.schema.json"

// WriteSchema writes the JSON schema of Config to w.
func WriteSchema(w io.Writer) error {
	r := &jsonschema.Reflector{
		// Every key has a default, so nothing is required in the file.
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = "https://github.com/bnema/ealain/config.schema.json"
	schema.Title = "Ealain Configuration"
	schema.Description = "Configuration schema for ealain, an AI image slideshow engine"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

// GenerateSchemaFile writes the JSON schema next to the config file so
// editors can validate it.
func GenerateSchemaFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create schema file: %w", err)
	}
	if err := WriteSchema(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SchemaPath returns where the schema sits for the current config directory.
func SchemaPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, schemaFileName), nil
}
