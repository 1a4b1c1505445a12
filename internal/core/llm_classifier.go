package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tasktalk/tasktalk/internal/store"
)

const (
	classifierModelName = "gemini-1.5-flash-latest"

	classifierSystemInstruction = "You classify a user's message about their to-do list into exactly one intent. " +
		"Respond with JSON only, no prose, matching this schema: " +
		`{"intent": "create_todo|list_todos|complete_todo|delete_todo|unknown", ` +
		`"title": "task title for create_todo", ` +
		`"target": "words identifying the task for complete_todo/delete_todo", ` +
		`"ordinal": 0, "priority": "", "category": "", ` +
		`"completed_only": false, "pending_only": false}. ` +
		"Use ordinal 1 for \"the first one\", -1 for \"the last one\", 0 when no ordinal was given. " +
		"If the message is not about managing to-dos, use intent \"unknown\"."
)

// classifierReply is the JSON shape the model is instructed to return.
type classifierReply struct {
	Intent        string `json:"intent"`
	Title         string `json:"title"`
	Target        string `json:"target"`
	Ordinal       int    `json:"ordinal"`
	Priority      string `json:"priority"`
	Category      string `json:"category"`
	CompletedOnly bool   `json:"completed_only"`
	PendingOnly   bool   `json:"pending_only"`
}

// GeminiClassifier asks Gemini to classify the utterance. Any failure --
// request error, timeout, malformed or invalid JSON -- degrades to the
// deterministic rule parser, so a turn never fails because the model did.
type GeminiClassifier struct {
	client   *genai.Client
	fallback *RuleParser
}

func NewGeminiClassifier(apiKey string) (*GeminiClassifier, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClassifier{
		client:   client,
		fallback: NewRuleParser(),
	}, nil
}

func (c *GeminiClassifier) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

func (c *GeminiClassifier) Classify(ctx context.Context, utterance string, recent []store.Message) (Intent, error) {
	model := c.client.GenerativeModel(classifierModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(classifierSystemInstruction)},
	}

	temp := float32(0)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}

	session := model.StartChat()
	session.History = historyFromMessages(recent)

	resp, err := session.SendMessage(ctx, genai.Text(utterance))
	if err != nil {
		log.Printf("Gemini classification failed, falling back to rules: %v", err)
		return c.fallback.Classify(ctx, utterance, recent)
	}

	raw := textFromResponse(resp)
	if raw == "" {
		log.Println("Gemini classification returned no text, falling back to rules.")
		return c.fallback.Classify(ctx, utterance, recent)
	}

	var reply classifierReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		log.Printf("Gemini classification returned malformed JSON (%q), falling back to rules.", raw)
		return c.fallback.Classify(ctx, utterance, recent)
	}

	intent, ok := intentFromReply(reply, utterance)
	if !ok {
		return c.fallback.Classify(ctx, utterance, recent)
	}
	return intent, nil
}

// intentFromReply validates the model's output against the intent contract.
// ok is false when the reply is unusable and the rule parser should decide.
func intentFromReply(reply classifierReply, utterance string) (Intent, bool) {
	intent := Intent{Raw: utterance}

	switch IntentKind(reply.Intent) {
	case IntentCreateTodo:
		title := strings.TrimSpace(reply.Title)
		if title == "" {
			return intent, false // never create an empty-title todo
		}
		if reply.Priority != "" && !store.ValidPriority(strings.ToLower(reply.Priority)) {
			return intent, false
		}
		intent.Kind = IntentCreateTodo
		intent.Title = title
		intent.Priority = strings.ToLower(reply.Priority)
		intent.Category = strings.ToLower(strings.TrimSpace(reply.Category))
	case IntentListTodos:
		intent.Kind = IntentListTodos
		intent.CompletedOnly = reply.CompletedOnly
		intent.PendingOnly = reply.PendingOnly && !reply.CompletedOnly
		intent.Category = strings.ToLower(strings.TrimSpace(reply.Category))
	case IntentCompleteTodo, IntentDeleteTodo:
		intent.Kind = IntentKind(reply.Intent)
		intent.TargetRef = strings.TrimSpace(reply.Target)
		intent.Ordinal = reply.Ordinal
		if intent.TargetRef == "" && intent.Ordinal == 0 {
			intent.NoTarget = true
		}
	case IntentUnknown:
		intent.Kind = IntentUnknown
	default:
		return intent, false // not one of the enumerated kinds
	}
	return intent, true
}

func historyFromMessages(recent []store.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(recent))
	for _, msg := range recent {
		role := "user"
		if msg.Role == store.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history
}

func textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
