package db

import (
	"fmt"
	"strings"
)

// Where accumulates AND-ed predicates with positional arguments. Each predicate is a
// format string whose %[1]d verbs are replaced by the placeholder index of arg.
type Where struct {
	conds []string
	args  []any
}

// Add appends a predicate bound to arg.
func (w *Where) Add(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

// Raw appends a predicate without arguments.
func (w *Where) Raw(cond string) {
	w.conds = append(w.conds, cond)
}

// SQL renders the clause with a leading space, or an empty string when there is none.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the bound arguments.
func (w *Where) Args() []any {
	return w.args
}

// Bind appends a trailing argument (LIMIT, OFFSET) and returns its placeholder.
func (w *Where) Bind(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Like wraps s for an ILIKE substring match. Wildcards in s match literally; predicates
// using it declare ESCAPE '\'.
func Like(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}
