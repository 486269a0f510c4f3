package tagging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(names ...string) []TagCandidate {
	list := make([]TagCandidate, 0, len(names))
	for i, name := range names {
		list = append(list, TagCandidate{
			ID:   fmt.Sprintf("id-%d", i),
			Name: name,
			Slug: fmt.Sprintf("slug-%d", i),
			Kind: KindUser,
		})
	}
	return list
}

func TestDisambiguate(t *testing.T) {
	t.Run("all exact matches", func(t *testing.T) {
		d := Disambiguate("alex", candidates("Alex", "ALEX", "alex"))
		require.NotNil(t, d)
		assert.Equal(t, "alex", d.Query)
		assert.Len(t, d.Matches, 3)
	})

	t.Run("only exact matches are presented", func(t *testing.T) {
		d := Disambiguate("alex", candidates("Alex", "Alexander", "alex"))
		require.NotNil(t, d)
		require.Len(t, d.Matches, 2)
		assert.Equal(t, "id-0", d.Matches[0].ID)
		assert.Equal(t, "id-2", d.Matches[1].ID)
	})

	t.Run("slug match counts", func(t *testing.T) {
		list := []TagCandidate{
			{ID: "a", Name: "Alex Smith", Slug: "alex", Kind: KindUser},
			{ID: "b", Name: "Alex", Slug: "alex-b", Kind: KindUser},
		}
		d := Disambiguate("Alex", list)
		require.NotNil(t, d)
		assert.Len(t, d.Matches, 2)
	})

	t.Run("single exact match opens the list", func(t *testing.T) {
		assert.Nil(t, Disambiguate("alex", candidates("Alex", "Alexander", "Alexis")))
	})

	t.Run("single result", func(t *testing.T) {
		assert.Nil(t, Disambiguate("alex", candidates("Alex")))
	})

	t.Run("more than five results", func(t *testing.T) {
		assert.Nil(t, Disambiguate("alex", candidates("Alex", "Alex", "Alex", "Alex", "Alex", "Alex")))
	})

	t.Run("five results", func(t *testing.T) {
		d := Disambiguate("alex", candidates("Alex", "Alex", "Alex", "Alex", "Alex"))
		require.NotNil(t, d)
		assert.Len(t, d.Matches, 5)
	})
}
