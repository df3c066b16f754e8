package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// TestStructJSONTags uses reflection to verify the json tags of the wire types.
// The snapshot tags must match the keys the in-page extraction script emits.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "DomNode",
			structRef: schemas.DomNode{},
			expectedTags: map[string]string{
				"Tag":         "tag",
				"Text":        "text,omitempty",
				"Role":        "role,omitempty",
				"ID":          "id,omitempty",
				"Classes":     "classes,omitempty",
				"Href":        "href,omitempty",
				"Name":        "name,omitempty",
				"AriaLabel":   "ariaLabel,omitempty",
				"Placeholder": "placeholder,omitempty",
				"Type":        "type,omitempty",
				"Visible":     "visible",
				"Rect":        "rect,omitempty",
				"Path":        "path",
			},
		},
		{
			name:      "PageSnapshot",
			structRef: schemas.PageSnapshot{},
			expectedTags: map[string]string{
				"URL":   "url",
				"Title": "title",
				"Nodes": "nodes",
			},
		},
		{
			name:      "ChatMessage",
			structRef: schemas.ChatMessage{},
			expectedTags: map[string]string{
				"Role":    "role",
				"Content": "content",
				"Name":    "name,omitempty",
			},
		},
		{
			name:      "GenerationOptions",
			structRef: schemas.GenerationOptions{},
			expectedTags: map[string]string{
				"Temperature":     "temperature",
				"MaxOutputTokens": "max_output_tokens",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tc.structRef)
			assert.Equal(t, len(tc.expectedTags), typ.NumField(), "field count changed; update the expected tags")
			for fieldName, expectedTag := range tc.expectedTags {
				field, found := typ.FieldByName(fieldName)
				if assert.True(t, found, "field %s not found", fieldName) {
					assert.Equal(t, expectedTag, field.Tag.Get("json"), "json tag of %s", fieldName)
				}
			}
		})
	}
}
