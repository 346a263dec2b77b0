// Package validation checks trace collection files against the embedded
// JSON Schema plus the semantic rules the schema cannot express.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"stepscope/internal/collection"
	"stepscope/schemas"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// collectionSchema is the compiled JSON Schema for collection files.
var collectionSchema *jsonschema.Schema

// classificationPattern matches well-formed classification codes: any
// concatenation of Y, N and the unparsed sentinel.
var classificationPattern = regexp.MustCompile(`^(?:Y|N|_NA_)+$`)

func init() {
	collectionSchema = mustCompileSchema(schemas.CollectionSchemaJSON, "collection.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateCollectionBytes validates raw YAML bytes against the collection
// schema. Each returned string is one finding; an empty slice means the
// document conforms.
func ValidateCollectionBytes(data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	return validateAgainstSchema(collectionSchema, convertToJSONCompatible(yamlDoc))
}

// SemanticFindings checks the rules that only hold on the resolved union:
// evaluated responses must carry well-formed step results. Untouched
// pre-evaluation responses produce no findings.
func SemanticFindings(c *collection.Collection) []string {
	var findings []string
	for _, qid := range c.QIDs() {
		resp := c.Responses[qid]
		if resp.Kind != collection.KindStructured {
			continue
		}
		for i, result := range resp.Results {
			if result.Step == "" {
				findings = append(findings, fmt.Sprintf("%s: step result %d has empty step text", qid, i))
			}
			if result.Classification == "" {
				findings = append(findings, fmt.Sprintf("%s: step result %d has empty classification", qid, i))
			} else if !classificationPattern.MatchString(result.Classification) {
				findings = append(findings, fmt.Sprintf("%s: step result %d classification %q is not a Y/N/%s code",
					qid, i, result.Classification, "_NA_"))
			}
		}
	}
	return findings
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible
// types. yaml.v3 decodes mappings to map[string]any already; nested values
// just need the same walk.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
