package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSortSpec(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []SortField
	}{
		{
			name: "empty",
			spec: "",
			want: nil,
		},
		{
			name: "single ascending",
			spec: "name",
			want: []SortField{{Field: "name"}},
		},
		{
			name: "single descending",
			spec: "-last_updated",
			want: []SortField{{Field: "last_updated", Descending: true}},
		},
		{
			name: "mixed directions preserve order",
			spec: "parent,-size,name",
			want: []SortField{
				{Field: "parent"},
				{Field: "size", Descending: true},
				{Field: "name"},
			},
		},
		{
			name: "first occurrence wins on repeats",
			spec: "name,-name,size",
			want: []SortField{
				{Field: "name"},
				{Field: "size"},
			},
		},
		{
			name: "whitespace and empty segments ignored",
			spec: " name , ,-size,",
			want: []SortField{
				{Field: "name"},
				{Field: "size", Descending: true},
			},
		},
		{
			name: "bare dash ignored",
			spec: "-,name",
			want: []SortField{{Field: "name"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSortSpec(tt.spec))
		})
	}
}
