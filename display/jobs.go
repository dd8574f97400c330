package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/jobtrail/internal/util"
	"github.com/teranos/jobtrail/jobs"
	"github.com/teranos/jobtrail/stats"
)

const (
	titleWidth   = 40
	companyWidth = 24
	barWidth     = 30
	dateLayout   = "2006-01-02"
)

// statusStyles colors each status in tables
var statusStyles = map[jobs.Status]*pterm.Style{
	jobs.StatusSaved:        pterm.NewStyle(pterm.FgGray),
	jobs.StatusApplied:      pterm.NewStyle(pterm.FgCyan),
	jobs.StatusInterviewing: pterm.NewStyle(pterm.FgYellow),
	jobs.StatusOffer:        pterm.NewStyle(pterm.FgMagenta),
	jobs.StatusHired:        pterm.NewStyle(pterm.FgGreen, pterm.Bold),
	jobs.StatusRejected:     pterm.NewStyle(pterm.FgRed),
	jobs.StatusWithdrawn:    pterm.NewStyle(pterm.FgGray),
}

// StatusText renders a status in its table color
func StatusText(s jobs.Status) string {
	if style, ok := statusStyles[s]; ok {
		return style.Sprint(string(s))
	}
	return string(s)
}

// JobsTable renders records as a numbered table. The numbers are the
// positions accepted wherever a job reference is expected.
func JobsTable(records []jobs.Record) (string, error) {
	if len(records) == 0 {
		return pterm.Gray("No jobs tracked yet. Add one with 'jobtrail add <url|pdf|text>'.") + "\n", nil
	}
	return NumberedTable(records, records)
}

// NumberedTable is JobsTable for a subset, keeping each record's position in all
func NumberedTable(subset, all []jobs.Record) (string, error) {
	if len(subset) == 0 {
		return pterm.Gray("No matching jobs.") + "\n", nil
	}
	position := make(map[string]int, len(all))
	for i, r := range all {
		position[r.ID] = i + 1
	}

	data := pterm.TableData{{"#", "ID", "Title", "Company", "Status", "Updated"}}
	for _, r := range subset {
		data = append(data, []string{
			strconv.Itoa(position[r.ID]),
			r.ShortID(),
			truncate(r.Title, titleWidth),
			truncate(r.Company, companyWidth),
			StatusText(r.Status),
			r.UpdatedAt.Local().Format(dateLayout),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// JobDetail renders every field of one record
func JobDetail(r *jobs.Record) (string, error) {
	var b strings.Builder
	b.WriteString(pterm.DefaultSection.Sprint(r.Title))

	data := pterm.TableData{
		{"ID", r.ID},
		{"Company", r.Company},
		{"Status", StatusText(r.Status)},
		{"Salary", r.Salary},
	}
	optional := [][2]string{
		{"Location", r.Location},
		{"Job type", r.JobType},
		{"Requirements", r.Requirements},
	}
	for _, f := range optional {
		if f[1] != "" {
			data = append(data, []string{f[0], f[1]})
		}
	}
	data = append(data,
		[]string{"Source", fmt.Sprintf("%s (%s)", r.Source, r.SourceType)},
		[]string{"Created", r.CreatedAt.Local().Format(time.RFC1123)},
		[]string{"Updated", r.UpdatedAt.Local().Format(time.RFC1123)},
	)

	table, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		return "", err
	}
	b.WriteString(table)
	b.WriteString("\n\n")
	b.WriteString(r.Description)
	b.WriteString("\n")

	if len(r.Notes) > 0 {
		b.WriteString("\n")
		b.WriteString(pterm.Bold.Sprint("Notes"))
		b.WriteString("\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "  %s  %s\n", pterm.Gray(n.At.Local().Format(dateLayout)), n.Text)
		}
	}

	if targets := jobs.AllowedTargets(r.Status); len(targets) > 0 {
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "\n%s %s\n", pterm.Gray("Next:"), strings.Join(names, ", "))
	}
	return b.String(), nil
}

// StatsView renders status counts with bars followed by the funnel edges
func StatsView(st stats.Stats) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n\n", pterm.Bold.Sprint("Total jobs:"), st.Total)

	peak := 0
	for _, s := range jobs.AllStatuses {
		if st.StatusCounts[s] > peak {
			peak = st.StatusCounts[s]
		}
	}

	counts := pterm.TableData{{"Status", "Count", "%", ""}}
	for _, s := range jobs.AllStatuses {
		n := st.StatusCounts[s]
		counts = append(counts, []string{
			StatusText(s),
			strconv.Itoa(n),
			strconv.FormatFloat(st.Percentages[s], 'f', 1, 64),
			bar(n, peak),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(counts).Srender()
	if err != nil {
		return "", err
	}
	b.WriteString(table)
	b.WriteString("\n\n")

	edges := pterm.TableData{{"Funnel step", "Jobs"}}
	for _, e := range st.FunnelEdges {
		edges = append(edges, []string{fmt.Sprintf("%s → %s", e.From, e.To), strconv.Itoa(e.Count)})
	}
	table, err = pterm.DefaultTable.WithHasHeader().WithData(edges).Srender()
	if err != nil {
		return "", err
	}
	b.WriteString(table)
	b.WriteString("\n")
	return b.String(), nil
}

// StaleTable renders records awaiting follow-up with their idle time
func StaleTable(records []jobs.Record, now time.Time) (string, error) {
	if len(records) == 0 {
		return pterm.Green("Nothing stale.") + "\n", nil
	}
	data := pterm.TableData{{"ID", "Title", "Company", "Status", "Idle"}}
	for _, r := range records {
		days := int(now.Sub(r.UpdatedAt).Hours() / 24)
		data = append(data, []string{
			r.ShortID(),
			truncate(r.Title, titleWidth),
			truncate(r.Company, companyWidth),
			StatusText(r.Status),
			fmt.Sprintf("%dd", days),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// bar draws n relative to peak, at least one cell for any non-zero count
func bar(n, peak int) string {
	if peak == 0 || n == 0 {
		return ""
	}
	width := n * barWidth / peak
	if width == 0 {
		width = 1
	}
	return strings.Repeat("█", width)
}

// truncate shortens s to n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	return util.Ellipsize(s, n, "…")
}
