package databases

import (
	"net/url"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Paginate holds the limit and page requested by a list route
type Paginate struct {
	Limit int64
	Page  int64
}

// NewPaginate reads "limit" and "page" from the query, falling back to sane defaults.
// Pages start at 1.
func NewPaginate(q url.Values) Paginate {
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return Paginate{Limit: int64(limit), Page: int64(page)}
}

// FindOptions returns the find options for the requested page
func (p Paginate) FindOptions() *options.FindOptions {
	skip := p.Page*p.Limit - p.Limit
	return options.Find().SetLimit(p.Limit).SetSkip(skip)
}
