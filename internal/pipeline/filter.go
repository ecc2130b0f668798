package pipeline

import (
	"sort"
	"strings"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// Teams lists the distinct non-empty teams in players, sorted.
func Teams(players []dfs.Player) []string {
	seen := make(map[string]bool)
	teams := make([]string, 0)
	for _, p := range players {
		if p.Team == "" || seen[p.Team] {
			continue
		}
		seen[p.Team] = true
		teams = append(teams, p.Team)
	}
	sort.Strings(teams)
	return teams
}

// FilterByTeams keeps the players on the requested teams, preserving
// ingestion order. An empty filter keeps everyone and selects every team.
// Requested teams that match no player are returned as unknown.
func FilterByTeams(players []dfs.Player, filter []string) (selected []string, kept []dfs.Player, unknown []string) {
	wanted := make(map[string]bool)
	for _, team := range filter {
		team = strings.TrimSpace(team)
		if team != "" {
			wanted[team] = true
		}
	}

	if len(wanted) == 0 {
		kept = make([]dfs.Player, len(players))
		copy(kept, players)
		return Teams(players), kept, nil
	}

	present := make(map[string]bool)
	for _, p := range players {
		if wanted[p.Team] {
			kept = append(kept, p)
			present[p.Team] = true
		}
	}

	for team := range wanted {
		if present[team] {
			selected = append(selected, team)
		} else {
			unknown = append(unknown, team)
		}
	}
	sort.Strings(selected)
	sort.Strings(unknown)
	return selected, kept, unknown
}
