package conversation

import (
	"reflect"
	"testing"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

func TestDecideTable(t *testing.T) {
	cases := []struct {
		name  string
		state enums.ConversationState
		body  string
		want  Decision
	}{
		{
			name:  "active menu digit starts drop flow",
			state: enums.ConversationActive,
			body:  "1",
			want:  Decision{NextState: enums.ConversationAwaitingBagNumber, Action: ActionPromptBagNumber},
		},
		{
			name:  "active keyword starts drop flow",
			state: enums.ConversationActive,
			body:  " New Drop ",
			want:  Decision{NextState: enums.ConversationAwaitingBagNumber, Action: ActionPromptBagNumber},
		},
		{
			name:  "active tracking request",
			state: enums.ConversationActive,
			body:  "2",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionShowTracking},
		},
		{
			name:  "active issue report",
			state: enums.ConversationActive,
			body:  "report",
			want:  Decision{NextState: enums.ConversationAwaitingIssueType, Action: ActionStartIssue},
		},
		{
			name:  "active pause",
			state: enums.ConversationActive,
			body:  "pause",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionPauseService},
		},
		{
			name:  "active resume",
			state: enums.ConversationActive,
			body:  "5",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionResumeService},
		},
		{
			name:  "active billing",
			state: enums.ConversationActive,
			body:  "billing",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionBillingLink},
		},
		{
			name:  "active direct tag submission",
			state: enums.ConversationActive,
			body:  "b007",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionCreateDrop, Tag: "B007"},
		},
		{
			name:  "active unrecognized falls back to menu",
			state: enums.ConversationActive,
			body:  "what's the weather",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionShowMenu},
		},
		{
			name:  "awaiting bag number with valid tag",
			state: enums.ConversationAwaitingBagNumber,
			body:  "B007",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionCreateDrop, Tag: "B007"},
		},
		{
			name:  "awaiting bag number with invalid text stays put",
			state: enums.ConversationAwaitingBagNumber,
			body:  "hello there",
			want:  Decision{NextState: enums.ConversationAwaitingBagNumber, Action: ActionInvalidTag},
		},
		{
			name:  "awaiting issue type advances",
			state: enums.ConversationAwaitingIssueType,
			body:  "Damaged",
			want:  Decision{NextState: enums.ConversationAwaitingIssueDesc, Action: ActionRecordIssueType, Value: "damaged"},
		},
		{
			name:  "awaiting description advances to photo",
			state: enums.ConversationAwaitingIssueDesc,
			body:  "My shirt came back torn",
			want:  Decision{NextState: enums.ConversationAwaitingIssuePhoto, Action: ActionRecordIssueDesc, Value: "My shirt came back torn"},
		},
		{
			name:  "awaiting photo finalizes without media",
			state: enums.ConversationAwaitingIssuePhoto,
			body:  "done",
			want:  Decision{NextState: enums.ConversationActive, Action: ActionFinalizeIssue},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.state, Inbound{From: "+15557654321", Body: tc.body})
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Decide(%s, %q) = %+v, want %+v", tc.state, tc.body, got, tc.want)
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	msg := Inbound{From: "+15557654321", Body: "B007", MessageSID: "SM1"}
	first := Decide(enums.ConversationAwaitingBagNumber, msg)
	second := Decide(enums.ConversationAwaitingBagNumber, msg)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different decisions: %+v vs %+v", first, second)
	}
}
