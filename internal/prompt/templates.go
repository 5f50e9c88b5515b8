// Package prompt holds the built-in processing templates and their
// lookup.
package prompt

import "sort"

type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	System      string `json:"-"`
	User        string `json:"-"`
}

var builtin = map[string]Template{
	"meeting_notes": {
		ID:          "meeting_notes",
		Name:        "Meeting notes",
		Description: "Turn a raw transcript into structured meeting minutes",
		System:      "You are an assistant that turns raw meeting transcripts into clear, structured minutes.",
		User:        "Organize the following transcript into meeting minutes with sections for attendees (if mentioned), discussion points, decisions, and action items. Keep the original language of the transcript.",
	},
	"study_notes": {
		ID:          "study_notes",
		Name:        "Study notes",
		Description: "Condense a lecture or talk into study notes",
		System:      "You are an assistant that condenses lectures into study notes.",
		User:        "Rewrite the following transcript as concise study notes: key concepts first, then supporting detail as nested bullets. Keep terminology exact.",
	},
	"content_summary": {
		ID:          "content_summary",
		Name:        "Summary",
		Description: "Short prose summary of the content",
		System:      "You are an assistant that writes faithful summaries.",
		User:        "Summarize the following text in a few short paragraphs. Do not add information that is not in the text.",
	},
	"cleanup": {
		ID:          "cleanup",
		Name:        "Cleanup",
		Description: "Fix punctuation and filler words without changing meaning",
		System:      "You are an assistant that cleans up speech transcripts without altering their meaning.",
		User:        "Clean up the following transcript: fix punctuation and obvious recognition errors, remove filler words, keep wording and meaning otherwise unchanged.",
	},
}

// Lookup returns the template for id.
func Lookup(id string) (Template, bool) {
	t, ok := builtin[id]
	return t, ok
}

// All returns the built-in templates sorted by ID.
func All() []Template {
	out := make([]Template, 0, len(builtin))
	for _, t := range builtin {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
