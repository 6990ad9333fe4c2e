package sync

import (
	"sort"
	"time"
)

const (
	StatsWindowDays = 30
	dayLayout       = "2006-01-02"
)

// StatsRanges are the accepted range values; 0 means everything fetched
var StatsRanges = []int{7, 14, 30, 0}

func ValidRange(days int) bool {
	for _, r := range StatsRanges {
		if r == days {
			return true
		}
	}
	return false
}

// BuildDailyStats rolls logs up per UTC day, oldest first
func BuildDailyStats(logs []SyncLog) []DailyStats {
	byDay := map[string]*DailyStats{}
	for _, l := range logs {
		day := l.StartedAt.UTC().Format(dayLayout)
		s, ok := byDay[day]
		if !ok {
			s = &DailyStats{Date: day}
			byDay[day] = s
		}
		s.SyncCount++
		s.RecordsProcessed += l.RecordsProcessed
		switch l.Status {
		case StatusCompleted:
			s.SuccessCount++
		case StatusFailed:
			s.FailureCount++
		}
	}

	days := make([]DailyStats, 0, len(byDay))
	for _, s := range byDay {
		days = append(days, *s)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// FilterStatsRange keeps the last rangeDays days ending at now; 0 keeps all
func FilterStatsRange(days []DailyStats, rangeDays int, now time.Time) []DailyStats {
	if rangeDays <= 0 {
		return days
	}
	cutoff := now.UTC().AddDate(0, 0, -(rangeDays - 1)).Format(dayLayout)

	out := make([]DailyStats, 0, len(days))
	for _, d := range days {
		if d.Date >= cutoff {
			out = append(out, d)
		}
	}
	return out
}

func Totals(days []DailyStats) DailyStats {
	var t DailyStats
	for _, d := range days {
		t.SyncCount += d.SyncCount
		t.SuccessCount += d.SuccessCount
		t.FailureCount += d.FailureCount
		t.RecordsProcessed += d.RecordsProcessed
	}
	return t
}
