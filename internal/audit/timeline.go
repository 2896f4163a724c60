package audit

import "time"

// TimelineFilters holds the basic filters of the audit timeline. To is an
// inclusive calendar day.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one entry of the audit timeline.
type TimelineRow struct {
	At       time.Time
	ActorID  int64
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

// FiltersViewModel holds the filter values echoed back to the template.
type FiltersViewModel struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
}

// ViewModel gathers the data of the audit timeline page.
type ViewModel struct {
	Filters FiltersViewModel
	Rows    []TimelineRow
	Paging  PagingInfo
}
