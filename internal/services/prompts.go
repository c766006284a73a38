package services

import "fmt"

// MaxPromptChars bounds extracted document and transcript text before it is
// embedded in a prompt.
const MaxPromptChars = 5000

func ExplainPrompt(topic string) string {
	return fmt.Sprintf(`
I want to study '%s'. Please explain this topic clearly as if I am a student.

Instructions:
- Use Markdown formatting
- Include **headings**, **bullet points**, and **examples**
- Keep it concise but deep
- Add **tips to remember** at the end
`, topic)
}

func FlashcardsPrompt(topic string) string {
	return fmt.Sprintf(`
Create 5 flashcards in Q&A format for the topic **'%s'**.
Return the flashcards using:
- Markdown formatting
- Numbered list
- Bold questions
- Regular answers
`, topic)
}

func FollowUpPrompt(topic string) string {
	return fmt.Sprintf(`
List 5 thoughtful follow-up questions for a student after learning about **'%s'**.
Use Markdown bullet points.
`, topic)
}

// DocumentSummaryPrompt expects text already truncated to MaxPromptChars.
func DocumentSummaryPrompt(text string) string {
	return fmt.Sprintf(`
Summarize the following academic PDF content in Markdown format:
- Provide bullet-point summary
- Organize into sections
- Emphasize key concepts

Content:

%s
`, text)
}

// VideoSummaryPrompt expects a transcript already truncated to MaxPromptChars.
func VideoSummaryPrompt(transcript string) string {
	return fmt.Sprintf("Summarize the key educational points in the following YouTube video transcript:\n\n%s\n\nRespond in Markdown format and organize the summary into sections.", transcript)
}

// truncateRunes cuts s to at most limit characters without splitting a rune.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
