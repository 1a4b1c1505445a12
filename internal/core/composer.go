package core

import (
	"fmt"
	"strings"
)

const helpReply = "I can manage your to-do list. Try things like:\n" +
	"- \"Add a task to buy groceries\"\n" +
	"- \"What do I have to do?\"\n" +
	"- \"Mark buy groceries as complete\"\n" +
	"- \"Delete the first one\""

const apologyReply = "Sorry, I'm having trouble processing your request right now. Please try again."

// Compose renders a dispatch outcome as the assistant's reply. Templates
// are fixed per outcome so the same outcome always reads the same way.
func Compose(outcome DispatchOutcome, utterance string) string {
	switch outcome.Status {
	case StatusSuccess:
		return composeSuccess(outcome)
	case StatusNotFound:
		return "I couldn't find a matching task. Ask \"What do I have to do?\" to see your list."
	case StatusAmbiguous:
		return composeAmbiguous(outcome)
	case StatusRejected:
		return "I'm not sure what you'd like me to do with your to-dos.\n" + helpReply
	default:
		// Internal detail never reaches the user.
		return apologyReply
	}
}

func composeSuccess(outcome DispatchOutcome) string {
	switch outcome.Kind {
	case IntentCreateTodo:
		return fmt.Sprintf("Added %q to your list.", outcome.Todo.Title)
	case IntentCompleteTodo:
		return fmt.Sprintf("Marked %q as completed. Nice work!", outcome.Todo.Title)
	case IntentDeleteTodo:
		return fmt.Sprintf("Deleted %q from your list.", outcome.Todo.Title)
	case IntentListTodos:
		return composeList(outcome)
	default:
		return apologyReply
	}
}

func composeList(outcome DispatchOutcome) string {
	if len(outcome.Todos) == 0 {
		return "You have no todos yet. Say \"Add a task to ...\" to create one."
	}

	open := 0
	var b strings.Builder
	for i, todo := range outcome.Todos {
		status := "pending"
		if todo.Completed {
			status = "completed"
		} else {
			open++
		}
		fmt.Fprintf(&b, "%d. %s (%s, %s priority)\n", i+1, todo.Title, status, todo.Priority)
	}
	header := fmt.Sprintf("You have %d open of %d total:\n", open, len(outcome.Todos))
	return header + strings.TrimRight(b.String(), "\n")
}

func composeAmbiguous(outcome DispatchOutcome) string {
	titles := make([]string, len(outcome.Candidates))
	for i, todo := range outcome.Candidates {
		titles[i] = fmt.Sprintf("%q", todo.Title)
	}
	return fmt.Sprintf("Which one did you mean: %s? Please be more specific.",
		strings.Join(titles, " or "))
}
