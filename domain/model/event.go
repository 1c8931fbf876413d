package model

// Change-event kinds for the queries collection. deleted is part of the
// contract for consumers but nothing in the API ever deletes a query.
const (
	ChangeInserted = "inserted"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
)

// ChangeEvent tells subscribers that a row changed. Views re-fetch their
// whole list on any event; Fields is carried so a consumer could patch
// incrementally instead.
type ChangeEvent struct {
	Kind   string   `json:"kind"`
	Table  string   `json:"table"`
	ID     string   `json:"id"`
	Fields []string `json:"fields,omitempty"`
}
