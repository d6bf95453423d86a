// Command protocolschema exports the wire protocol as JSON Schema so
// non-Go clients can validate and generate their message bindings.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"

	"nova-clash/server"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// outboundMessages lists every server-to-client payload, keyed by the type
// discriminator clients switch on.
var outboundMessages = map[string]any{
	"session_snapshot":     server.SnapshotMessage{},
	"player_moved":         server.MovedMessage{},
	"player_shot":          server.ShotMessage{},
	"player_joined":        server.JoinedMessage{},
	"player_left":          server.LeftMessage{},
	"session_list_updated": server.SessionListMessage{},
	"heartbeat":            server.HeartbeatMessage{},
	"error":                server.ErrorMessage{},
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Nova Clash Wire Protocol",
		Description: fmt.Sprintf("Server-to-client messages for protocol version %d, discriminated by the type field.", server.ProtocolVersion),
	}
	for _, name := range sortedKeys(outboundMessages) {
		messageSchema := reflector.ReflectFromType(reflect.TypeOf(outboundMessages[name]))
		messageSchema.Version = ""
		messageSchema.Title = name
		root.OneOf = append(root.OneOf, messageSchema)
	}
	return root
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
