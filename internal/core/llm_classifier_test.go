package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentFromReplyValidation(t *testing.T) {
	tests := []struct {
		name   string
		reply  classifierReply
		want   Intent
		wantOK bool
	}{
		{
			name:   "create with title",
			reply:  classifierReply{Intent: "create_todo", Title: "buy groceries"},
			want:   Intent{Kind: IntentCreateTodo, Title: "buy groceries"},
			wantOK: true,
		},
		{
			name:   "create without title is unusable",
			reply:  classifierReply{Intent: "create_todo"},
			wantOK: false,
		},
		{
			name:   "create with bogus priority is unusable",
			reply:  classifierReply{Intent: "create_todo", Title: "x", Priority: "urgent"},
			wantOK: false,
		},
		{
			name:   "complete with target",
			reply:  classifierReply{Intent: "complete_todo", Target: "groceries"},
			want:   Intent{Kind: IntentCompleteTodo, TargetRef: "groceries"},
			wantOK: true,
		},
		{
			name:   "complete without target carries no-target marker",
			reply:  classifierReply{Intent: "complete_todo"},
			want:   Intent{Kind: IntentCompleteTodo, NoTarget: true},
			wantOK: true,
		},
		{
			name:   "delete with ordinal",
			reply:  classifierReply{Intent: "delete_todo", Ordinal: 2},
			want:   Intent{Kind: IntentDeleteTodo, Ordinal: 2},
			wantOK: true,
		},
		{
			name:   "list with both flags keeps completed only",
			reply:  classifierReply{Intent: "list_todos", CompletedOnly: true, PendingOnly: true},
			want:   Intent{Kind: IntentListTodos, CompletedOnly: true},
			wantOK: true,
		},
		{
			name:   "unknown passes through",
			reply:  classifierReply{Intent: "unknown"},
			want:   Intent{Kind: IntentUnknown},
			wantOK: true,
		},
		{
			name:   "unrecognised kind is unusable",
			reply:  classifierReply{Intent: "make_coffee"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intentFromReply(tt.reply, "raw utterance")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				tt.want.Raw = "raw utterance"
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
