package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"info_arena/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	addr := flag.String("addr", "http://localhost:8090", "simulator base URL")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	flag.Parse()

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := waitHealth(c, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "simulator health check failed: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	runsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	runsTable.SetTitle("Runs (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	rankingsTable := tview.NewTable().
		SetBorders(false)
	rankingsTable.SetTitle("Rankings").SetBorder(true)

	eventsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	eventsView.SetTitle("Events").SetBorder(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf(
		"Connected to %s | shortcuts: F10 quit, F5 refresh",
		c.baseURL,
	))

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(rankingsTable, 0, 1, false).
		AddItem(eventsView, 0, 2, false)

	mainLayout := tview.NewFlex().
		AddItem(runsTable, 0, 1, false).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(statusView, 3, 0, false)

	var selectedRunID string
	var lastRuns []domain.Run
	var detailsVersion uint64

	setStatusUI := func(msg string) {
		statusView.SetText(msg)
	}

	refreshRuns := func() {
		runs, err := c.listRuns(50)
		if err != nil {
			app.QueueUpdateDraw(func() {
				runsTable.Clear()
				runsTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("load error: %v", err)).SetTextColor(tview.Styles.ContrastSecondaryTextColor))
			})
			return
		}
		lastRuns = runs
		app.QueueUpdateDraw(func() {
			renderRunsTable(runsTable, runs, selectedRunID)
		})
	}

	refreshDetailsAsync := func(runID string) {
		if strings.TrimSpace(runID) == "" {
			return
		}
		version := atomic.AddUint64(&detailsVersion, 1)

		go func(selected string, v uint64) {
			rankings, rankErr := c.runRankings(selected)
			events, evErr := c.runEvents(selected, 400)

			if atomic.LoadUint64(&detailsVersion) != v {
				return
			}
			app.QueueUpdateDraw(func() {
				if selected != selectedRunID {
					return
				}
				if rankErr != nil {
					rankingsTable.Clear()
					rankingsTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("error: %v", rankErr)))
				} else {
					renderRankingsTable(rankingsTable, rankings)
				}
				if evErr != nil {
					eventsView.SetText(fmt.Sprintf("error: %v", evErr))
				} else {
					eventsView.SetText(renderEvents(events))
					eventsView.ScrollToEnd()
				}
			})
		}(runID, version)
	}

	runsTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(lastRuns) {
			return
		}
		selectedRunID = lastRuns[row-1].ID
		refreshDetailsAsync(selectedRunID)
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			refreshRuns()
			refreshDetailsAsync(selectedRunID)
			setStatusUI("Manual refresh complete")
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		refreshRuns()
		if len(lastRuns) > 0 {
			selectedRunID = lastRuns[0].ID
			refreshDetailsAsync(selectedRunID)
		}

		for range ticker.C {
			refreshRuns()
			if selectedRunID == "" && len(lastRuns) > 0 {
				selectedRunID = lastRuns[0].ID
			}
			refreshDetailsAsync(selectedRunID)
		}
	}()

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(runsTable).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func waitHealth(c *client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
		if err == nil {
			resp, err := c.http.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func renderRunsTable(table *tview.Table, runs []domain.Run, selectedRunID string) {
	table.Clear()
	headers := []string{"Run", "Started", "Status", "Winner"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, run := range runs {
		row := i + 1
		status := "running"
		winner := "-"
		if run.FinishedAt != nil {
			status = "finished"
			if len(run.Rankings) > 0 {
				winner = fmt.Sprintf("%s (%.1f)", run.Rankings[0].AgentID, run.Rankings[0].Points)
			}
		}
		table.SetCell(row, 0, tview.NewTableCell(shortID(run.ID)))
		table.SetCell(row, 1, tview.NewTableCell(humanize.Time(run.StartedAt)))
		table.SetCell(row, 2, tview.NewTableCell(status))
		table.SetCell(row, 3, tview.NewTableCell(winner))
		if run.ID == selectedRunID {
			table.Select(row, 0)
		}
	}
}

func renderRankingsTable(table *tview.Table, rankings []domain.ScoreEntry) {
	table.Clear()
	headers := []string{"#", "Agent", "Points", "Completions"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, entry := range rankings {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%d", row)))
		table.SetCell(row, 1, tview.NewTableCell(entry.AgentID))
		table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%.1f", entry.Points)))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", entry.Completions)))
	}
}

func renderEvents(events []domain.Event) string {
	if len(events) == 0 {
		return "No events"
	}
	var b strings.Builder
	for _, event := range events {
		agent := event.Agent
		if agent == "" {
			agent = "-"
		}
		b.WriteString(fmt.Sprintf(
			"[%s] r%-3d seq=%-5d %-18s %s\n",
			event.CreatedAt.Format("15:04:05"),
			event.Round,
			event.Seq,
			event.Kind,
			agent,
		))
		if detail := payloadSummary(event.Payload); detail != "" {
			b.WriteString("  " + trimLine(detail, 160) + "\n")
		}
	}
	return b.String()
}

func payloadSummary(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "{}" {
		return ""
	}

	var kv map[string]any
	if err := json.Unmarshal(payload, &kv); err == nil {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, kv[k]))
		}
		return strings.Join(parts, ", ")
	}
	return trimmed
}

func (c *client) listRuns(limit int) ([]domain.Run, error) {
	var out []domain.Run
	if err := c.getJSON(fmt.Sprintf("/runs?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) runRankings(runID string) ([]domain.ScoreEntry, error) {
	var out []domain.ScoreEntry
	if err := c.getJSON(fmt.Sprintf("/runs/%s/rankings", runID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) runEvents(runID string, limit int) ([]domain.Event, error) {
	var out []domain.Event
	if err := c.getJSON(fmt.Sprintf("/runs/%s/events?limit=%d", runID, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
