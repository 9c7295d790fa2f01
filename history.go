package pdfquiz

import (
	"sort"
	"strings"
)

// HistoryStatus filters histories by whether they have a stored result
type HistoryStatus string

const (
	StatusAll        HistoryStatus = "all"
	StatusAnswered   HistoryStatus = "answered"
	StatusUnanswered HistoryStatus = "unanswered"
)

// HistorySort orders histories
type HistorySort string

const (
	SortDateDesc  HistorySort = "date_desc"
	SortDateAsc   HistorySort = "date_asc"
	SortScoreDesc HistorySort = "score_desc"
	SortScoreAsc  HistorySort = "score_asc"
	SortTitleAsc  HistorySort = "title_asc"
	SortTitleDesc HistorySort = "title_desc"
)

// HistoryFilter selects and orders a user's quiz history
type HistoryFilter struct {
	Search string
	Status HistoryStatus
	Sort   HistorySort
}

// ParseHistoryFilter builds a filter from raw values, falling back to
// all/date_desc for anything unknown
func ParseHistoryFilter(search, status, sortBy string) HistoryFilter {
	f := HistoryFilter{
		Search: strings.TrimSpace(search),
		Status: StatusAll,
		Sort:   SortDateDesc,
	}
	switch s := HistoryStatus(status); s {
	case StatusAnswered, StatusUnanswered:
		f.Status = s
	}
	switch s := HistorySort(sortBy); s {
	case SortDateAsc, SortScoreDesc, SortScoreAsc, SortTitleAsc, SortTitleDesc:
		f.Sort = s
	}
	return f
}

// FilterHistories returns the matching histories in the requested order.
// The input slice is not modified.
func FilterHistories(items []QuizHistory, f HistoryFilter) []QuizHistory {
	search := strings.ToLower(f.Search)

	out := make([]QuizHistory, 0, len(items))
	for _, item := range items {
		if search != "" && !strings.Contains(strings.ToLower(item.DocTitle), search) {
			continue
		}
		switch f.Status {
		case StatusAnswered:
			if !item.Answered() {
				continue
			}
		case StatusUnanswered:
			if item.Answered() {
				continue
			}
		}
		out = append(out, item)
	}

	var less func(a, b QuizHistory) bool
	switch f.Sort {
	case SortDateAsc:
		less = func(a, b QuizHistory) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortScoreDesc:
		less = func(a, b QuizHistory) bool { return scoreOf(a) > scoreOf(b) }
	case SortScoreAsc:
		less = func(a, b QuizHistory) bool { return scoreOf(a) < scoreOf(b) }
	case SortTitleAsc:
		less = func(a, b QuizHistory) bool { return strings.ToLower(a.DocTitle) < strings.ToLower(b.DocTitle) }
	case SortTitleDesc:
		less = func(a, b QuizHistory) bool { return strings.ToLower(a.DocTitle) > strings.ToLower(b.DocTitle) }
	default:
		less = func(a, b QuizHistory) bool { return a.CreatedAt.After(b.CreatedAt) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// unanswered quizzes rank below any answered one
func scoreOf(h QuizHistory) float64 {
	if h.LatestScore == nil {
		return -1
	}
	return *h.LatestScore
}
