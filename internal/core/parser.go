package core

import (
	"context"
	"regexp"
	"strings"

	"github.com/tasktalk/tasktalk/internal/store"
)

// RuleParser classifies utterances with keyword and pattern matching. No
// model is involved, so identical input always yields identical output.
// It is the default classifier and the fallback behind the Gemini adapter.
type RuleParser struct{}

func NewRuleParser() *RuleParser {
	return &RuleParser{}
}

// Verb phrases that open an utterance for each mutating intent. Longer
// phrases must come before their prefixes ("check off" before "check").
var createVerbs = []string{
	"add", "create", "make", "remind me to", "i need to", "i have to",
	"don't forget to", "dont forget to", "note down", "put down", "new",
}

var completeVerbs = []string{
	"mark", "complete", "finish", "check off", "tick off",
	"i finished", "i completed", "i did", "i'm done with", "im done with", "done with",
}

var deleteVerbs = []string{
	"delete", "remove", "drop", "cancel", "get rid of", "scratch", "forget about",
}

// Whole-utterance patterns that signal a list request.
var listPatterns = []string{
	"what do i have to do", "what do i need to do", "what's on my list",
	"whats on my list", "what's left", "whats left", "what are my",
	"show me", "show my", "list my", "list all", "list todos", "list tasks",
	"my tasks", "my todos", "my to-dos", "my to dos", "my list",
	"anything to do", "todo list", "to-do list",
}

// Filler words stripped between a verb and the payload ("add a task to buy
// groceries" -> "buy groceries").
var fillerPrefixes = []string{
	"a ", "an ", "the ", "my ", "task ", "tasks ", "todo ", "todos ",
	"to-do ", "item ", "to ", "for ", "called ", "named ", "that says ",
	"off ", ": ", ":",
}

var targetSuffixes = []string{
	" as completed", " as complete", " as done", " as finished",
	" completed", " complete", " done", " finished",
	" from my list", " from the list", " off my list", " off the list",
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

var (
	priorityRe = regexp.MustCompile(`(?i)\s*(?:with\s+)?(low|medium|high)\s+priority\s*`)
	categoryRe = regexp.MustCompile(`(?i)\s*(?:in\s+(?:the\s+)?([\w-]+)\s+category|category\s+([\w-]+))\s*`)
)

// Classify resolves one utterance into an Intent. recent context is accepted
// for interface parity with the model-backed classifier; the rule parser
// resolves every utterance from its own text.
func (p *RuleParser) Classify(_ context.Context, utterance string, _ []store.Message) (Intent, error) {
	intent := Intent{Kind: IntentUnknown, Raw: utterance}

	text := strings.TrimSpace(utterance)
	text = strings.TrimRight(text, ".!?")
	if text == "" {
		return intent, nil
	}
	lower := strings.ToLower(text)

	if rest, ok := stripVerb(text, createVerbs); ok {
		return p.parseCreate(intent, rest), nil
	}
	if rest, ok := stripVerb(text, completeVerbs); ok {
		return p.parseTarget(intent, IntentCompleteTodo, rest), nil
	}
	if rest, ok := stripVerb(text, deleteVerbs); ok {
		return p.parseTarget(intent, IntentDeleteTodo, rest), nil
	}
	for _, pattern := range listPatterns {
		if strings.Contains(lower, pattern) {
			return p.parseList(intent, lower), nil
		}
	}
	return intent, nil
}

func (p *RuleParser) parseCreate(intent Intent, rest string) Intent {
	if m := priorityRe.FindStringSubmatch(rest); m != nil {
		intent.Priority = strings.ToLower(m[1])
		rest = priorityRe.ReplaceAllString(rest, " ")
	}
	if m := categoryRe.FindStringSubmatch(rest); m != nil {
		if m[1] != "" {
			intent.Category = strings.ToLower(m[1])
		} else {
			intent.Category = strings.ToLower(m[2])
		}
		rest = categoryRe.ReplaceAllString(rest, " ")
	}

	title := strings.Trim(strings.TrimSpace(stripFillers(rest)), `"'`)
	if title == "" {
		// A create verb with nothing to create degrades to Unknown
		// rather than producing an empty-title todo.
		return intent
	}
	intent.Kind = IntentCreateTodo
	intent.Title = title
	return intent
}

func (p *RuleParser) parseTarget(intent Intent, kind IntentKind, rest string) Intent {
	intent.Kind = kind

	lower := strings.ToLower(rest)
	for _, suffix := range targetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			rest = rest[:len(rest)-len(suffix)]
			lower = lower[:len(lower)-len(suffix)]
			break
		}
	}

	ref := strings.Trim(strings.TrimSpace(stripFillers(rest)), `"'`)
	for _, noun := range []string{" task", " todo", " item"} {
		if strings.HasSuffix(strings.ToLower(ref), noun) {
			ref = strings.TrimSpace(ref[:len(ref)-len(noun)])
		}
	}
	lowRef := strings.ToLower(ref)

	ordRef := strings.TrimPrefix(strings.TrimSuffix(lowRef, " one"), "the ")
	if n, ok := ordinalWords[ordRef]; ok {
		intent.Ordinal = n
		return intent
	}
	if ordRef == "last" {
		intent.Ordinal = -1
		return intent
	}

	switch lowRef {
	case "", "task", "todo", "item", "it", "this", "that":
		// "Mark task as complete" names no particular task. The
		// dispatcher decides against the live list instead of the
		// parser guessing.
		intent.NoTarget = true
		return intent
	}
	intent.TargetRef = ref
	return intent
}

func (p *RuleParser) parseList(intent Intent, lower string) Intent {
	intent.Kind = IntentListTodos
	if containsAny(lower, "completed", "finished", "done") {
		intent.CompletedOnly = true
	} else if containsAny(lower, "open", "pending", "remaining", "unfinished", "left") {
		intent.PendingOnly = true
	}
	if m := categoryRe.FindStringSubmatch(lower); m != nil {
		if m[1] != "" {
			intent.Category = m[1]
		} else {
			intent.Category = m[2]
		}
	}
	return intent
}

// stripVerb removes a leading verb phrase followed by a word boundary.
// Matching is case-insensitive; the remainder keeps its original casing.
func stripVerb(text string, verbs []string) (string, bool) {
	for _, verb := range verbs {
		if len(text) < len(verb) || !strings.EqualFold(text[:len(verb)], verb) {
			continue
		}
		rest := text[len(verb):]
		if rest != "" && rest[0] != ' ' {
			continue // prefix of a longer word, e.g. "additional"
		}
		return strings.TrimSpace(rest), true
	}
	return text, false
}

func stripFillers(text string) string {
	text = strings.TrimSpace(text)
	for {
		stripped := false
		for _, filler := range fillerPrefixes {
			if len(text) >= len(filler) && strings.EqualFold(text[:len(filler)], filler) {
				text = strings.TrimSpace(text[len(filler):])
				stripped = true
			}
		}
		if !stripped {
			return text
		}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
