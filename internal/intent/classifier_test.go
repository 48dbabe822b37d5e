package intent

import (
	"reflect"
	"strings"
	"testing"

	"assistant/internal/backend"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{"blank", "   ", Help{}},
		{"help word", "help", Help{}},
		{"start command", "/start", Help{}},
		{"capabilities", "what can you do?", Help{}},

		{"switch offline", "switch to offline", ModeSwitch{Target: backend.Local}},
		{"go online", "go online", ModeSwitch{Target: backend.Remote}},
		{"use local model", "please use the local model", ModeSwitch{Target: backend.Local}},
		{"switch mode to cloud", "switch mode to cloud.", ModeSwitch{Target: backend.Remote}},
		{"switch online please", "switch to online please", ModeSwitch{Target: backend.Remote}},
		{"switch offline now", "switch to offline now!", ModeSwitch{Target: backend.Local}},
		{"go local comma please", "go local, please", ModeSwitch{Target: backend.Local}},
		{"cloud model for me", "use the cloud model for me now, thanks", ModeSwitch{Target: backend.Remote}},
		{"mode word inside a question", "should I switch to online or offline later?",
			Chat{Text: "should I switch to online or offline later?"}},
		{"mode command", "/mode offline", ModeSwitch{Target: backend.Local}},
		{"mode command bot suffix", "/mode@helper_bot online", ModeSwitch{Target: backend.Remote}},
		{"mode command bad target", "/mode banana", ModeSwitch{Missing: []string{ParamTarget}}},
		{"bare switch", "switch mode", ModeSwitch{Missing: []string{ParamTarget}}},
		{"mode command alone", "/mode", StatusQuery{}},

		{"send email bare", "send email", EmailSend{Missing: []string{ParamRecipient, ParamBody}}},
		{"send email no body", "send an email to bob@example.com", EmailSend{Recipient: "bob@example.com", Missing: []string{ParamBody}}},
		{"send email saying", "send an email to bob@example.com saying see you at noon",
			EmailSend{Recipient: "bob@example.com", Body: "see you at noon"}},
		{"send email subject and body", "send email to bob@example.com subject: Lunch body: see you at noon",
			EmailSend{Recipient: "bob@example.com", Subject: "Lunch", Body: "see you at noon"}},
		{"email to with colon", "email to alice@example.org: meeting moved to 3pm",
			EmailSend{Recipient: "alice@example.org", Body: "meeting moved to 3pm"}},
		{"compose without recipient", "compose a mail saying hi", EmailSend{Body: "hi", Missing: []string{ParamRecipient}}},

		{"check email", "check my email", EmailRead{}},
		{"unread from", "show unread emails from alice", EmailRead{Filter: EmailFilter{From: "alice", UnreadOnly: true}}},
		{"search mail", "search emails for invoice", EmailRead{Filter: EmailFilter{Query: "invoice"}}},
		{"mail about", "any mail about the offsite?", EmailRead{Filter: EmailFilter{Query: "the offsite"}}},
		{"latest n", "read my latest 3 emails", EmailRead{Filter: EmailFilter{Limit: 3}}},

		{"search for", "search for resume", FileSearch{Query: "resume"}},
		{"find all files", "find all pdf files", FileSearch{Query: "pdf"}},
		{"find my file", "find my resume file", FileSearch{Query: "resume"}},
		{"look for quoted", `look for "budget 2024.xlsx"`, FileSearch{Query: "budget 2024.xlsx"}},
		{"locate", "locate notes.txt", FileSearch{Query: "notes.txt"}},
		{"where is", "where is the invoice?", FileSearch{Query: "invoice"}},
		{"find nothing", "find", FileSearch{Missing: []string{ParamQuery}}},
		{"local is not a mode switch here", "go find my local files", FileSearch{Query: "local"}},

		{"status", "status", StatusQuery{}},
		{"status command", "/status@helper_bot", StatusQuery{}},
		{"which mode", "which mode are you in", StatusQuery{}},

		{"chat", "tell me a joke", Chat{Text: "tell me a joke"}},
		{"chat trimmed", "  what's the capital of France?  ", Chat{Text: "what's the capital of France?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Classify(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_Incomplete(t *testing.T) {
	if !Incomplete(Classify("send email")) {
		t.Fatalf("bare send email should be incomplete")
	}
	if Incomplete(Classify("search for resume")) {
		t.Fatalf("search with query should be complete")
	}
	if Incomplete(nil) {
		t.Fatalf("nil action is not incomplete")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []string{"switch to offline", "search for resume", "send email", "hello there", ""}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 5; i++ {
			if got := Classify(in); !reflect.DeepEqual(got, first) {
				t.Fatalf("Classify(%q) not deterministic: %#v vs %#v", in, got, first)
			}
		}
	}
}

func TestKindString(t *testing.T) {
	if KindFileSearch.String() != "file_search" || KindChat.String() != "chat" || KindEmailSend.String() != "email_send" {
		t.Fatalf("unexpected kind names")
	}
}

func FuzzClassify(f *testing.F) {
	for _, seed := range []string{
		"", "help", "switch to offline", "/mode local", "send email to a@b.co saying hi",
		"search for resume", "find", "check my inbox", "状态", "\x00\xff", strings.Repeat("find ", 50),
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		a := Classify(in)
		if a == nil {
			t.Fatalf("nil action for %q", in)
		}
		if !reflect.DeepEqual(a, Classify(in)) {
			t.Fatalf("non-deterministic for %q", in)
		}
		if Incomplete(a) {
			switch a.Kind() {
			case KindFileSearch, KindEmailSend, KindModeSwitch:
			default:
				t.Fatalf("kind %v cannot be incomplete", a.Kind())
			}
		}
		if c, ok := a.(Chat); ok && c.Text != strings.TrimSpace(in) {
			t.Fatalf("chat text %q altered from %q", c.Text, in)
		}
	})
}
