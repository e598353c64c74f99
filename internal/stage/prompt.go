package stage

import "strings"

const systemPrompt = "You are an assistant that reads a meeting transcript and produces concise meeting summary. Respond with valid Markdown format."

// buildUserContent wraps the transcript and optional extra instructions into the user turn
func buildUserContent(transcript, extraPrompt string) string {
	content := "Input transcript:\n" + transcript
	if extra := strings.TrimSpace(extraPrompt); extra != "" {
		content += "\n\nAdditional instructions:\n" + extra
	}
	return content
}

// pick returns value, or fallback when value is blank
func pick(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
