package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNested(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		path     []string
		value    string
		want     string
		wantErr  error
	}{
		{
			name:     "empty_document",
			existing: "{}",
			path:     []string{"b", "c"},
			value:    "1",
			want:     `{"b":{"c":"1"}}`,
		},
		{
			name:     "malformed_document_starts_fresh",
			existing: "not json",
			path:     []string{"b"},
			value:    "1",
			want:     `{"b":"1"}`,
		},
		{
			name:     "empty_string_starts_fresh",
			existing: "",
			path:     []string{"b"},
			value:    "1",
			want:     `{"b":"1"}`,
		},
		{
			name:     "keeps_siblings",
			existing: `{"progress":"3"}`,
			path:     []string{"notes"},
			value:    "hello",
			want:     `{"progress":"3","notes":"hello"}`,
		},
		{
			name:     "overwrites_string_leaf",
			existing: `{"b":"1"}`,
			path:     []string{"b"},
			value:    "2",
			want:     `{"b":"2"}`,
		},
		{
			name:     "replaces_non_object_intermediate",
			existing: `{"b":"1","keep":"yes"}`,
			path:     []string{"b", "c"},
			value:    "2",
			want:     `{"b":{"c":"2"},"keep":"yes"}`,
		},
		{
			name:     "preserves_numbers",
			existing: `{"n":12345678901234567890}`,
			path:     []string{"s"},
			value:    "x",
			want:     `{"n":12345678901234567890,"s":"x"}`,
		},
		{
			name:     "rejects_object_leaf",
			existing: `{"b":{"c":"1"}}`,
			path:     []string{"b"},
			value:    "x",
			wantErr:  ErrStructuralOverwrite,
		},
		{
			name:     "rejects_array_leaf",
			existing: `{"b":[1,2]}`,
			path:     []string{"b"},
			value:    "x",
			wantErr:  ErrStructuralOverwrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeNested(tt.existing, tt.path, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestMergeNested_DoesNotEscapeHTML(t *testing.T) {
	got, err := MergeNested("{}", []string{"b"}, "<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `{"b":"<a&b>"}`, got)
}

func TestExtractNested(t *testing.T) {
	doc := `{"b":{"c":"1","n":5,"list":["x"]},"s":"top"}`

	tests := []struct {
		name    string
		value   string
		path    []string
		want    string
		wantErr error
	}{
		{"string_leaf", doc, []string{"b", "c"}, "1", nil},
		{"string_top", doc, []string{"s"}, "top", nil},
		{"object_as_json", doc, []string{"b"}, `{"c":"1","list":["x"],"n":5}`, nil},
		{"number_as_json", doc, []string{"b", "n"}, "5", nil},
		{"array_as_json", doc, []string{"b", "list"}, `["x"]`, nil},
		{"missing_leaf", doc, []string{"b", "x"}, "", ErrNotFound},
		{"missing_intermediate", doc, []string{"x", "c"}, "", ErrNotFound},
		{"walk_through_string", doc, []string{"s", "c"}, "", ErrNotFound},
		{"malformed", "plain value", []string{"b"}, "", ErrMalformedDocument},
		{"array_root", `["b"]`, []string{"b"}, "", ErrMalformedDocument},
		{"empty", "", []string{"b"}, "", ErrMalformedDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractNested(tt.value, tt.path)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteNested(t *testing.T) {
	t.Run("removes_leaf_keeps_siblings", func(t *testing.T) {
		doc, empty, err := DeleteNested(`{"b":{"c":"1","d":"2"}}`, []string{"b", "c"})
		require.NoError(t, err)
		assert.False(t, empty)
		assert.JSONEq(t, `{"b":{"d":"2"}}`, doc)
	})

	t.Run("empty_intermediate_is_kept", func(t *testing.T) {
		doc, empty, err := DeleteNested(`{"b":{"c":"1"},"e":"2"}`, []string{"b", "c"})
		require.NoError(t, err)
		assert.False(t, empty)
		assert.JSONEq(t, `{"b":{},"e":"2"}`, doc)
	})

	t.Run("reports_empty_document", func(t *testing.T) {
		doc, empty, err := DeleteNested(`{"b":"1"}`, []string{"b"})
		require.NoError(t, err)
		assert.True(t, empty)
		assert.Empty(t, doc)
	})

	t.Run("removes_subtree", func(t *testing.T) {
		_, empty, err := DeleteNested(`{"b":{"c":{"d":"1"}}}`, []string{"b"})
		require.NoError(t, err)
		assert.True(t, empty)
	})

	t.Run("missing_leaf", func(t *testing.T) {
		_, _, err := DeleteNested(`{"b":"1"}`, []string{"x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("intermediate_not_object", func(t *testing.T) {
		_, _, err := DeleteNested(`{"b":"1"}`, []string{"b", "c"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := DeleteNested(`nope`, []string{"b"})
		assert.ErrorIs(t, err, ErrMalformedDocument)
	})
}

func TestIsDocument(t *testing.T) {
	assert.True(t, isDocument(`{"a":"1"}`))
	assert.True(t, isDocument(`[1]`))
	assert.False(t, isDocument(`"str"`))
	assert.False(t, isDocument(`42`))
	assert.False(t, isDocument(`plain`))
	assert.False(t, isDocument(``))
	assert.False(t, isDocument(`{"a":1} trailing`))
}
