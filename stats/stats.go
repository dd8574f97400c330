// Package stats aggregates job records into funnel statistics.
//
// Records carry only their current status, so flow between stages is
// approximated: a record counts toward every edge it must have crossed to
// reach its status. Rejected and Withdrawn records are attributed to the
// earliest stage that can reach them.
package stats

import (
	"context"
	"math"

	"github.com/teranos/jobtrail/jobs"
)

// Edge is the number of records that crossed one step of the funnel
type Edge struct {
	From  jobs.Status `json:"from"`
	To    jobs.Status `json:"to"`
	Count int         `json:"count"`
}

// Node is a Sankey chart node
type Node struct {
	Name jobs.Status `json:"name"`
}

// Link is a Sankey chart link between two named nodes
type Link struct {
	Source jobs.Status `json:"source"`
	Target jobs.Status `json:"target"`
	Value  int         `json:"value"`
}

// Sankey holds chart-ready nodes and links. Only non-zero flow is included.
type Sankey struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Stats is the aggregate view of a store
type Stats struct {
	Total        int                     `json:"total"`
	StatusCounts map[jobs.Status]int     `json:"status_counts"`
	Percentages  map[jobs.Status]float64 `json:"percentages"`
	FunnelEdges  []Edge                  `json:"funnel_edges"`
	Sankey       Sankey                  `json:"sankey"`
}

// funnelStep lists the statuses whose records must have crossed from -> to
type funnelStep struct {
	from, to jobs.Status
	reached  []jobs.Status
}

var funnel = []funnelStep{
	{jobs.StatusSaved, jobs.StatusApplied, []jobs.Status{
		jobs.StatusApplied, jobs.StatusInterviewing, jobs.StatusOffer, jobs.StatusHired, jobs.StatusRejected,
	}},
	{jobs.StatusApplied, jobs.StatusInterviewing, []jobs.Status{
		jobs.StatusInterviewing, jobs.StatusOffer, jobs.StatusHired, jobs.StatusRejected,
	}},
	{jobs.StatusInterviewing, jobs.StatusOffer, []jobs.Status{jobs.StatusOffer, jobs.StatusHired}},
	{jobs.StatusInterviewing, jobs.StatusRejected, []jobs.Status{jobs.StatusRejected}},
	{jobs.StatusOffer, jobs.StatusHired, []jobs.Status{jobs.StatusHired}},
	// Rejected is attributed to Interviewing, the earliest stage that reaches it
	{jobs.StatusOffer, jobs.StatusRejected, nil},
	{jobs.StatusSaved, jobs.StatusWithdrawn, []jobs.Status{jobs.StatusWithdrawn}},
}

// Compute aggregates records. Every status appears in StatusCounts, zero included.
func Compute(records []jobs.Record) Stats {
	st := Stats{
		Total:        len(records),
		StatusCounts: make(map[jobs.Status]int, len(jobs.AllStatuses)),
		Percentages:  make(map[jobs.Status]float64, len(jobs.AllStatuses)),
		FunnelEdges:  make([]Edge, 0, len(funnel)),
		Sankey:       Sankey{Nodes: []Node{}, Links: []Link{}},
	}

	for _, s := range jobs.AllStatuses {
		st.StatusCounts[s] = 0
	}
	for _, r := range records {
		st.StatusCounts[r.Status]++
	}
	for _, s := range jobs.AllStatuses {
		st.Percentages[s] = percent(st.StatusCounts[s], st.Total)
	}

	inSankey := make(map[jobs.Status]bool)
	for _, step := range funnel {
		n := 0
		for _, s := range step.reached {
			n += st.StatusCounts[s]
		}
		st.FunnelEdges = append(st.FunnelEdges, Edge{From: step.from, To: step.to, Count: n})

		if n > 0 {
			st.Sankey.Links = append(st.Sankey.Links, Link{Source: step.from, Target: step.to, Value: n})
			inSankey[step.from] = true
			inSankey[step.to] = true
		}
	}
	for _, s := range jobs.AllStatuses {
		if inSankey[s] {
			st.Sankey.Nodes = append(st.Sankey.Nodes, Node{Name: s})
		}
	}

	return st
}

// Edge returns the count of the from -> to funnel edge, or zero if no such edge exists
func (s Stats) Edge(from, to jobs.Status) int {
	for _, e := range s.FunnelEdges {
		if e.From == from && e.To == to {
			return e.Count
		}
	}
	return 0
}

// percent returns n/total as a percentage rounded to one decimal place
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// Lister is the read side of the job store
type Lister interface {
	List(ctx context.Context) ([]jobs.Record, error)
}

// Aggregator computes stats from a store on demand
type Aggregator struct {
	store Lister
}

// NewAggregator creates an Aggregator over store
func NewAggregator(store Lister) *Aggregator {
	return &Aggregator{store: store}
}

// Compute lists the store and aggregates it
func (a *Aggregator) Compute(ctx context.Context) (Stats, error) {
	records, err := a.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Compute(records), nil
}
