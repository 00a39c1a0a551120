package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an assistant specialized in task analysis and productivity.\n" +
	"Analyze the information provided and return a structured response."

// buildAnalysisPrompt asks for the six labeled lines ParseResponse reads.
func buildAnalysisPrompt(text, context string) string {
	var b strings.Builder
	b.WriteString("Analyze the following task and provide:\n")
	b.WriteString("1. A concise summary\n")
	b.WriteString("2. Suggested priority (LOW, MEDIUM, HIGH, URGENT)\n")
	b.WriteString("3. Estimated hours required\n")
	b.WriteString("4. Relevant tags (at most 5)\n")
	b.WriteString("5. Subtask suggestions (if applicable)\n\n")
	fmt.Fprintf(&b, "Task: %s\n", text)

	if context != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", context)
	}

	b.WriteString("\nExpected response format:\n")
	b.WriteString(labelSummary + " [summary]\n")
	b.WriteString(labelPriority + " [LOW|MEDIUM|HIGH|URGENT]\n")
	b.WriteString(labelHours + " [number]\n")
	b.WriteString(labelTags + " [tag1, tag2, tag3]\n")
	b.WriteString(labelSubtasks + " [subtask1; subtask2; subtask3]\n")
	b.WriteString(labelAnalysis + " [detailed analysis]")

	return b.String()
}

func analysisMessages(text, context string) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildAnalysisPrompt(text, context)},
	}
}

func buildReportPrompt(titles []string, totalHours int) string {
	return fmt.Sprintf("Generate a productivity report based on the following data:\n"+
		"Completed tasks: %d\n"+
		"Total hours worked: %d\n"+
		"Tasks: %s\n\n"+
		"Provide insights about productivity, patterns and suggestions for improvement.",
		len(titles), totalHours, strings.Join(titles, ", "))
}

// fallbackReport renders the offline productivity summary.
func fallbackReport(count, totalHours int) string {
	average := float64(totalHours) / float64(max(count, 1))
	return fmt.Sprintf("Productivity Report\n\n"+
		"You completed %d tasks in %d hours.\n"+
		"Average of %.1f hours per task.\n\n"+
		"Configure the OpenAI API to get detailed reports with insights and recommendations.",
		count, totalHours, average)
}
