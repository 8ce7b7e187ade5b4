package store

import (
	"strings"
	"time"
)

// ListFilter selects file records. Zero values mean "no filter"; all
// populated filters combine with AND.
type ListFilter struct {
	Search         string     // case-insensitive substring of original_filename
	FileType       string     // exact match
	SizeMin        *int64     // inclusive
	SizeMax        *int64     // inclusive
	UploadedAfter  *time.Time // inclusive
	UploadedBefore *time.Time // inclusive
	Limit          int
	Offset         int
}

type listQueryBuilder struct {
	filter ListFilter
	query  string
	args   []any
	where  []string
}

func buildListQuery(filter ListFilter) (string, []any) {
	builder := &listQueryBuilder{filter: filter}
	builder.buildSelect()
	builder.buildWhere()
	builder.buildOrder()
	builder.buildPagination()
	return builder.query, builder.args
}

func (b *listQueryBuilder) buildSelect() {
	b.query = "SELECT " + fileColumns + " FROM files"
}

func (b *listQueryBuilder) buildWhere() {
	b.appendSearch()
	b.appendFileType()
	b.appendSizeBounds()
	b.appendTimeBounds()

	if len(b.where) == 0 {
		return
	}
	b.query += " WHERE " + strings.Join(b.where, " AND ")
}

func (b *listQueryBuilder) buildOrder() {
	b.query += " ORDER BY uploaded_at DESC"
}

func (b *listQueryBuilder) buildPagination() {
	hasLimit := false
	if b.filter.Limit > 0 {
		b.query += " LIMIT ?"
		b.args = append(b.args, b.filter.Limit)
		hasLimit = true
	}
	if b.filter.Offset > 0 {
		if !hasLimit {
			b.query += " LIMIT -1"
		}
		b.query += " OFFSET ?"
		b.args = append(b.args, b.filter.Offset)
	}
}

func (b *listQueryBuilder) appendSearch() {
	if b.filter.Search == "" {
		return
	}
	// SQLite LIKE folds ASCII case, matching the icontains contract.
	// LIKE metacharacters in the term are escaped so they match literally.
	b.where = append(b.where, `original_filename LIKE '%' || ? || '%' ESCAPE '\'`)
	b.args = append(b.args, escapeLikeTerm(b.filter.Search))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikeTerm(term string) string {
	return likeEscaper.Replace(term)
}

func (b *listQueryBuilder) appendFileType() {
	if b.filter.FileType == "" {
		return
	}
	b.where = append(b.where, "file_type = ?")
	b.args = append(b.args, b.filter.FileType)
}

func (b *listQueryBuilder) appendSizeBounds() {
	if b.filter.SizeMin != nil {
		b.where = append(b.where, "size >= ?")
		b.args = append(b.args, *b.filter.SizeMin)
	}
	if b.filter.SizeMax != nil {
		b.where = append(b.where, "size <= ?")
		b.args = append(b.args, *b.filter.SizeMax)
	}
}

func (b *listQueryBuilder) appendTimeBounds() {
	if b.filter.UploadedAfter != nil {
		b.where = append(b.where, "uploaded_at >= ?")
		b.args = append(b.args, formatTime(*b.filter.UploadedAfter))
	}
	if b.filter.UploadedBefore != nil {
		b.where = append(b.where, "uploaded_at <= ?")
		b.args = append(b.args, formatTime(*b.filter.UploadedBefore))
	}
}
