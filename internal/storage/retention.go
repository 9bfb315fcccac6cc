package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"
)

// RetentionPolicy defines how many backups to keep in each time bucket.
type RetentionPolicy struct {
	KeepLast    int
	KeepHourly  int
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
	KeepYearly  int
}

// IsZero reports whether the policy sets no limits at all.
func (p RetentionPolicy) IsZero() bool {
	return p == RetentionPolicy{}
}

// ApplyRetention lists the archives of a set and deletes those that exceed the
// policy. A zero policy keeps everything. Returns the number of archives deleted.
func ApplyRetention(ctx context.Context, backend Backend, set string, policy RetentionPolicy) (int, error) {
	if policy.IsZero() {
		return 0, nil
	}

	backups, err := backend.List(ctx, set)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s archives on %s: %w", set, backend.Name(), err)
	}

	if len(backups) == 0 {
		return 0, nil
	}

	toKeep := selectBackupsToKeep(backups, policy)

	deleted := 0
	for _, b := range backups {
		if _, keep := toKeep[b.Key]; !keep {
			if err := backend.Delete(ctx, b.Key); err != nil {
				log.Printf("[retention] Failed to delete %s from %s: %v", b.FileName, backend.Name(), err)
				continue
			}
			log.Printf("[retention] Pruned %s from %s", b.FileName, backend.Name())
			deleted++
		}
	}

	return deleted, nil
}

// selectBackupsToKeep returns the keys of the archives that at least one
// bucket rule keeps.
func selectBackupsToKeep(backups []BackupMetadata, policy RetentionPolicy) map[string]struct{} {
	keep := make(map[string]struct{})
	for key, labels := range ClassifyRetentionBuckets(backups, policy) {
		if len(labels) > 0 {
			keep[key] = struct{}{}
		}
	}
	return keep
}

// bucketRule keeps the newest archive in each of the count most recent periods
// produced by period.
type bucketRule struct {
	label  string
	count  int
	period func(time.Time) time.Time
}

func (p RetentionPolicy) bucketRules() []bucketRule {
	return []bucketRule{
		{"hourly", p.KeepHourly, func(t time.Time) time.Time { return startOfDay(t).Add(time.Duration(t.Hour()) * time.Hour) }},
		{"daily", p.KeepDaily, startOfDay},
		{"weekly", p.KeepWeekly, startOfISOWeek},
		{"monthly", p.KeepMonthly, func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()) }},
		{"yearly", p.KeepYearly, func(t time.Time) time.Time { return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location()) }},
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfISOWeek returns the Monday that opens t's ISO week.
func startOfISOWeek(t time.Time) time.Time {
	sinceMonday := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -sinceMonday)
}

// ClassifyRetentionBuckets maps each archive key to the labels ("latest",
// "daily", ...) of the rules that keep it, in the style of restic and borg.
// Archives that would be pruned map to an empty slice. The list command uses
// it to annotate its output.
func ClassifyRetentionBuckets(backups []BackupMetadata, policy RetentionPolicy) map[string][]string {
	labels := make(map[string][]string, len(backups))
	for _, b := range backups {
		labels[b.Key] = nil
	}

	newest := make([]BackupMetadata, len(backups))
	copy(newest, backups)
	sort.SliceStable(newest, func(i, j int) bool {
		return newest[i].CreatedAt.After(newest[j].CreatedAt)
	})

	for i := 0; i < policy.KeepLast && i < len(newest); i++ {
		labels[newest[i].Key] = append(labels[newest[i].Key], "latest")
	}

	for _, rule := range policy.bucketRules() {
		if rule.count <= 0 {
			continue
		}
		seen := make(map[time.Time]struct{}, rule.count)
		for _, b := range newest {
			period := rule.period(b.CreatedAt)
			if _, ok := seen[period]; ok {
				continue
			}
			seen[period] = struct{}{}
			labels[b.Key] = append(labels[b.Key], rule.label)
			if len(seen) == rule.count {
				break
			}
		}
	}

	return labels
}
