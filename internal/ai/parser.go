package ai

import (
	"log"
	"strconv"
	"strings"

	"github.com/nhle/smarttask/internal/model"
)

const (
	labelSummary  = "SUMMARY:"
	labelPriority = "PRIORITY:"
	labelHours    = "HOURS:"
	labelTags     = "TAGS:"
	labelSubtasks = "SUBTASKS:"
	labelAnalysis = "ANALYSIS:"

	tagSeparator     = ","
	subtaskSeparator = ";"
	listPlaceholder  = "-"
)

type field int

const (
	fieldSummary field = iota
	fieldPriority
	fieldHours
	fieldTags
	fieldSubtasks
	fieldAnalysis
)

// labels maps every accepted line prefix to its field. The Portuguese
// spellings are what older prompts asked the model for.
var labels = []struct {
	prefix string
	field  field
}{
	{labelSummary, fieldSummary},
	{"RESUMO:", fieldSummary},
	{labelPriority, fieldPriority},
	{"PRIORIDADE:", fieldPriority},
	{labelHours, fieldHours},
	{"HORAS:", fieldHours},
	{labelTags, fieldTags},
	{labelSubtasks, fieldSubtasks},
	{"SUBTAREFAS:", fieldSubtasks},
	{labelAnalysis, fieldAnalysis},
	{"ANALISE:", fieldAnalysis},
	{"ANÁLISE:", fieldAnalysis},
}

// ParseResponse reads the six labeled lines of a model response. Labels
// match case-insensitively in any order; the last occurrence of a label
// wins and other lines are ignored. Missing fields get the same defaults as
// the offline result, so Priority, Tags and SubtaskTitles are always set.
func ParseResponse(text string) model.AnalysisResult {
	var result model.AnalysisResult

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		f, value, ok := matchLabel(trimmed)
		if !ok {
			continue
		}

		switch f {
		case fieldSummary:
			result.Summary = value
		case fieldPriority:
			result.Priority = parsePriority(value)
		case fieldHours:
			result.EstimatedHours = parseHours(value)
		case fieldTags:
			result.Tags = parseList(value, tagSeparator)
		case fieldSubtasks:
			result.SubtaskTitles = parseList(value, subtaskSeparator)
		case fieldAnalysis:
			result.Narrative = value
		}
	}

	if result.Priority == "" {
		result.Priority = model.PriorityMedium
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}
	if result.SubtaskTitles == nil {
		result.SubtaskTitles = []string{}
	}

	return result
}

func matchLabel(line string) (field, string, bool) {
	for _, l := range labels {
		n := len(l.prefix)
		if len(line) >= n && strings.EqualFold(line[:n], l.prefix) {
			return l.field, strings.TrimSpace(line[n:]), true
		}
	}
	return 0, "", false
}

// parsePriority keeps only ASCII letters, uppercases, and picks the longest
// priority name the result starts with. Anything else is MEDIUM.
func parsePriority(raw string) model.Priority {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, raw))

	best := model.Priority("")
	for _, p := range model.Priorities {
		if strings.HasPrefix(cleaned, string(p)) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return model.PriorityMedium
	}
	return best
}

// parseHours keeps only digits. No digits, or a number too large for int,
// leaves the estimate unset.
func parseHours(raw string) *int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return nil
	}

	hours, err := strconv.Atoi(digits)
	if err != nil {
		log.Printf("ai: ignoring invalid hours estimate %q: %v", raw, err)
		return nil
	}
	return &hours
}

func parseList(raw, sep string) []string {
	items := []string{}
	if strings.TrimSpace(raw) == "" {
		return items
	}
	for _, item := range strings.Split(raw, sep) {
		item = strings.TrimSpace(item)
		if item == "" || item == listPlaceholder {
			continue
		}
		items = append(items, item)
	}
	return items
}
