package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dropDatabas3/kcseed/internal/config"
	"github.com/dropDatabas3/kcseed/internal/provision"
)

var rule = strings.Repeat("=", 60)

func printBanner(w io.Writer, cfg *config.Config, runID string) {
	purge := "yes"
	if !cfg.Purge.Enabled {
		purge = "no"
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "kcseed", version, "- run", runID)
	fmt.Fprintf(w, "  Server:      %s\n", cfg.Keycloak.BaseURL)
	fmt.Fprintf(w, "  Realm:       %s\n", cfg.Realm.Name)
	fmt.Fprintf(w, "  Client:      %s\n", cfg.Client.ID)
	fmt.Fprintf(w, "  Users:       %d in batches of %d\n", cfg.Seed.TotalUsers, cfg.Seed.BatchSize)
	fmt.Fprintf(w, "  Pause:       %s - %s between batches\n", cfg.Seed.PauseMin, cfg.Seed.PauseMax)
	fmt.Fprintf(w, "  Purge:       %s\n", purge)
	fmt.Fprintln(w, rule)
}

func printSummary(w io.Writer, res provision.RunResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintf(w, "  Realm:       %s (%s)\n", res.RealmName, res.Realm.Status)
	fmt.Fprintf(w, "  Client:      %s (%s)\n", res.ClientID, res.Client.Status)
	fmt.Fprintf(w, "  Purge:       %s, deleted %d, failed %d\n", res.Purge.Step.Status, res.Purge.Deleted, res.Purge.Errors)
	fmt.Fprintf(w, "  Seed:        %s\n", res.Seed.Step.Status)
	fmt.Fprintf(w, "  Processed:   %d\n", res.Seed.Processed)
	fmt.Fprintf(w, "  Created:     %d\n", res.Seed.Created)
	fmt.Fprintf(w, "  Failed:      %d\n", res.Seed.Failed)
	fmt.Fprintf(w, "  Skipped:     %d\n", res.Seed.Skipped)
	if res.Seed.ReportPath != "" {
		fmt.Fprintf(w, "  Report:      %s\n", res.Seed.ReportPath)
	}
	fmt.Fprintf(w, "  Took:        %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	for _, s := range res.Steps() {
		if s.Err != nil {
			fmt.Fprintf(w, "  ! %s: %v\n", s.Name, s.Err)
		}
	}
	fmt.Fprintln(w, rule)
}
