package tools

import (
	"google.golang.org/genai"
)

// Declarations converts registered tools into Gemini function declarations,
// in registration order.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	all := r.All()
	decls := make([]*genai.FunctionDeclaration, 0, len(all))
	for _, tool := range all {
		decls = append(decls, tool.Declaration())
	}
	return decls
}

// Declaration converts the tool schema into a Gemini function declaration.
func (t *Tool) Declaration() *genai.FunctionDeclaration {
	properties := make(map[string]*genai.Schema, len(t.Schema.Properties))
	for name, prop := range t.Schema.Properties {
		properties[name] = &genai.Schema{
			Type:        schemaType(prop.Type),
			Description: prop.Description,
			Default:     prop.Default,
		}
	}
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: properties,
			Required:   t.Schema.Required,
		},
	}
}

func schemaType(jsonType string) genai.Type {
	switch jsonType {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
