// Package schemas holds the JSON Schema documents embedded in the binary.
package schemas

import _ "embed"

// CollectionSchemaJSON is the schema for trace collection files.
//
//go:embed collection.schema.json
var CollectionSchemaJSON string
