package models

import (
	"strings"
	"time"
)

// Clause is one SQL predicate with its bound arguments. Column names inside
// SQL come from code, never from request input; values only travel in Args.
type Clause struct {
	SQL  string
	Args []any
}

// And joins clauses with AND. An empty result means "no constraint".
func And(clauses ...Clause) Clause {
	var parts []string
	var args []any
	for _, c := range clauses {
		if c.SQL == "" {
			continue
		}
		parts = append(parts, "("+c.SQL+")")
		args = append(args, c.Args...)
	}
	return Clause{SQL: strings.Join(parts, " AND "), Args: args}
}

// Where renders the clause as a WHERE suffix, or nothing when it is empty.
func (c Clause) Where() string {
	if c.SQL == "" {
		return ""
	}
	return " WHERE " + c.SQL
}

type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// PostFilter selects posts for QueryPosts. Unset fields impose no constraint.
type PostFilter struct {
	PostID         *int64
	AuthorID       *int64
	ParentID       *int64
	FirstLevel     bool
	TextContains   string
	UsernamePrefix string
	From           *time.Time // inclusive
	To             *time.Time // inclusive
	Order          Order
	Limit          int
	Offset         int
}

func postIDIs(id int64) Clause { return Clause{"p.post_id = ?", []any{id}} }

func authorIs(id int64) Clause { return Clause{"p.user_id = ?", []any{id}} }

func parentIs(id int64) Clause { return Clause{"p.parent_post_id = ?", []any{id}} }

// firstLevel keeps top-level posts and replies to top-level posts.
func firstLevel() Clause {
	return Clause{SQL: "p.parent_post_id IS NULL OR pp.parent_post_id IS NULL"}
}

// contentContains matches case-insensitively. fold is the Unicode lower-case
// function db.Open registers on every connection; SQLite's lower() only folds ASCII.
func contentContains(text string) Clause {
	return Clause{"instr(fold(p.content), fold(?)) > 0", []any{text}}
}

// usernameHasPrefix is case-sensitive, matching how usernames are stored.
func usernameHasPrefix(prefix string) Clause {
	return Clause{"substr(u.username, 1, length(?)) = ?", []any{prefix, prefix}}
}

func createdFrom(t time.Time) Clause {
	return Clause{"p.created_at >= ?", []any{t.UTC().Format(TimeLayout)}}
}

func createdTo(t time.Time) Clause {
	return Clause{"p.created_at <= ?", []any{t.UTC().Format(TimeLayout)}}
}

// Clauses returns one predicate per populated field.
func (f PostFilter) Clauses() []Clause {
	var cs []Clause
	if f.PostID != nil {
		cs = append(cs, postIDIs(*f.PostID))
	}
	if f.AuthorID != nil {
		cs = append(cs, authorIs(*f.AuthorID))
	}
	if f.ParentID != nil {
		cs = append(cs, parentIs(*f.ParentID))
	}
	if f.FirstLevel {
		cs = append(cs, firstLevel())
	}
	if f.TextContains != "" {
		cs = append(cs, contentContains(f.TextContains))
	}
	if f.UsernamePrefix != "" {
		cs = append(cs, usernameHasPrefix(f.UsernamePrefix))
	}
	if f.From != nil {
		cs = append(cs, createdFrom(*f.From))
	}
	if f.To != nil {
		cs = append(cs, createdTo(*f.To))
	}
	return cs
}

func (f PostFilter) orderBy() string {
	if f.Order == OldestFirst {
		return " ORDER BY p.created_at ASC, p.post_id ASC"
	}
	return " ORDER BY p.created_at DESC, p.post_id DESC"
}

// page renders LIMIT/OFFSET. A non-positive limit means unlimited.
func (f PostFilter) page() (string, []any) {
	if f.Limit <= 0 && f.Offset <= 0 {
		return "", nil
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return " LIMIT ? OFFSET ?", []any{limit, offset}
}
