package telemetry

import "time"

// FilterByTime returns records whose timestamp falls within [since, until).
// Zero bounds are open: a zero since means no lower bound, a zero until
// means no upper bound. Records without a timestamp are always kept, since
// dropping them would silently shrink every windowed report.
func FilterByTime(records []CallRecord, since, until time.Time) []CallRecord {
	var out []CallRecord
	for _, r := range records {
		if r.Timestamp.IsZero() {
			out = append(out, r)
			continue
		}
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && !r.Timestamp.Before(until) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterByOperation returns records matching the given operation name.
// An empty operation matches everything.
func FilterByOperation(records []CallRecord, operation string) []CallRecord {
	if operation == "" {
		return records
	}
	var out []CallRecord
	for _, r := range records {
		if r.Operation == operation {
			out = append(out, r)
		}
	}
	return out
}

// FilterByAgent returns records matching the given agent name.
// An empty agent matches everything.
func FilterByAgent(records []CallRecord, agent string) []CallRecord {
	if agent == "" {
		return records
	}
	var out []CallRecord
	for _, r := range records {
		if r.AgentName == agent {
			out = append(out, r)
		}
	}
	return out
}

// GroupByOperation buckets records by operation name, preserving input
// order within each bucket. Records with no operation name are grouped
// under "(unknown)".
func GroupByOperation(records []CallRecord) map[string][]CallRecord {
	groups := make(map[string][]CallRecord)
	for _, r := range records {
		op := r.Operation
		if op == "" {
			op = "(unknown)"
		}
		groups[op] = append(groups[op], r)
	}
	return groups
}
