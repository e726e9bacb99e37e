// Package output renders console reports for headless runs.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/community-explorer/pkg/session"
	"github.com/ritzau/community-explorer/pkg/viz"
)

const barWidth = 20

// PrintReport prints the session outcome: status line, community size
// distribution and the run history with comparison bars
func PrintReport(w io.Writer, snap session.Snapshot) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "Community Explorer - Analysis Report")
	bold.Fprintln(w, "====================================")
	if snap.SelectedGraph != "" {
		fmt.Fprintf(w, "Graph: %s (%d nodes, %d edges)\n", snap.SelectedGraph, snap.Graph.Nodes, snap.Graph.Edges)
	} else {
		fmt.Fprintln(w, "Graph: none")
	}
	fmt.Fprintf(w, "Algorithm: %s\n", snap.Algorithm.DisplayName())

	statusColor := yellow
	switch {
	case strings.HasPrefix(snap.Status, "Error") || snap.Status == "Upload failed":
		statusColor = red
	case strings.HasPrefix(snap.Status, "Analysis complete. Found"):
		statusColor = green
	}
	statusColor.Fprintf(w, "Status: %s\n", snap.Status)
	fmt.Fprintln(w)

	// Community size distribution
	if len(snap.CommunitySizes) > 0 {
		largest := snap.CommunitySizes[0].Size
		cyan.Fprintln(w, "COMMUNITY SIZES:")
		for _, c := range snap.CommunitySizes {
			fmt.Fprintf(w, "  %-8s %-7s %s %d\n", c.Community.Key(), viz.ColorFor(c.Community), bar(float64(c.Size)/float64(largest)*100), c.Size)
		}
		fmt.Fprintln(w)
	}

	// Run history
	if len(snap.History) == 0 {
		yellow.Fprintln(w, "No runs recorded")
		return
	}

	cyan.Fprintln(w, "RUN HISTORY (newest first):")
	fmt.Fprintf(w, "  %-3s %-20s %-11s %-12s %s\n", "#", "Algorithm", "Modularity", "Communities", "Score")
	for i, h := range snap.History {
		fmt.Fprintf(w, "  %-3d %-20s %-11.4f %-12d %s %.1f%%\n",
			i+1, h.Algorithm, h.Modularity, h.NumCommunities, bar(h.Score), h.Score)
	}

	best := snap.History[0]
	for _, h := range snap.History[1:] {
		if h.Modularity > best.Modularity {
			best = h
		}
	}
	fmt.Fprintln(w)
	green.Fprintf(w, "✓ Best modularity: %.4f (%s)\n", best.Modularity, best.Algorithm)
}

// bar renders percent (0..100) as a fixed-width bar
func bar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	if filled < 1 && percent > 0 {
		filled = 1
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("·", barWidth-filled)
}
