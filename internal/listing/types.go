package listing

// Telemetry counts the work done on behalf of a listing operation.
// Values are observational only and never drive the algorithm.
type Telemetry struct {
	ListCalls  int `json:"list_calls" yaml:"list_calls"`   // top-level page requests
	ShardCalls int `json:"shard_calls" yaml:"shard_calls"` // shard queries issued by the coordinator
	Queries    int `json:"queries" yaml:"queries"`         // non-empty scans executed by shards
	RowsRead   int `json:"rows_read" yaml:"rows_read"`     // raw rows returned by those scans
	Returned   int `json:"returned" yaml:"returned"`       // items handed back to the client
}

// Add accumulates other into t.
func (t *Telemetry) Add(other Telemetry) {
	t.ListCalls += other.ListCalls
	t.ShardCalls += other.ShardCalls
	t.Queries += other.Queries
	t.RowsRead += other.RowsRead
	t.Returned += other.Returned
}

// Query is a request against a single shard.
type Query struct {
	Cursor    Cursor    // exclusive lower bound
	Delimiter Delimiter // optional prefix collapsing
	Quota     int       // maximum number of output items
}

// ShardResult is the ordered output of one shard query.
type ShardResult struct {
	Items []string
	// IsTruncated means matching entries exist beyond the last item that
	// were not surfaced.
	IsTruncated bool
	Telemetry   Telemetry
}

// Page is one globally ordered, duplicate-free page of keys and common prefixes.
type Page struct {
	Items       []string
	IsTruncated bool
	Telemetry   Telemetry
}

// NextMarker returns the marker a client passes to continue after this page,
// or "" for an empty page.
func (p Page) NextMarker() string {
	if len(p.Items) == 0 {
		return ""
	}
	return p.Items[len(p.Items)-1]
}
