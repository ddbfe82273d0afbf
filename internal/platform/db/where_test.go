package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereEmpty(t *testing.T) {
	var w Where
	assert.Equal(t, "", w.SQL())
	assert.Empty(t, w.Args())
}

func TestWhereBuildsPositionalPredicates(t *testing.T) {
	var w Where
	w.Add("(p.name ILIKE $%[1]d ESCAPE '\\' OR p.description ILIKE $%[1]d ESCAPE '\\')", Like(" tea "))
	w.Add("p.category = $%d", "Beverages")
	w.Raw("p.stock_quantity <= p.reorder_level")
	limit := w.Bind(50)

	assert.Equal(t, " WHERE (p.name ILIKE $1 ESCAPE '\\' OR p.description ILIKE $1 ESCAPE '\\') AND p.category = $2 AND p.stock_quantity <= p.reorder_level", w.SQL())
	assert.Equal(t, "$3", limit)
	assert.Equal(t, []any{"%tea%", "Beverages", 50}, w.Args())
}

func TestLikeEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%tea%", Like(" tea "))
	assert.Equal(t, `%100\% arabica%`, Like("100% arabica"))
	assert.Equal(t, `%cold\_brew%`, Like("cold_brew"))
	assert.Equal(t, `%a\\b%`, Like(`a\b`))
	assert.Equal(t, "%%", Like("  "))
}
