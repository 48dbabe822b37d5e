package i18n

import "testing"

func TestNew_English(t *testing.T) {
	i := New("en")
	if i.Locale() != "en" {
		t.Fatalf("Locale()=%q, want en", i.Locale())
	}
	got := i.T("panel.chat")
	if got != "Chat" {
		t.Fatalf("T(panel.chat)=%q, want Chat", got)
	}
}

func TestNew_Chinese(t *testing.T) {
	i := New("zh-CN")
	if i.Locale() != "zh-CN" {
		t.Fatalf("Locale()=%q, want zh-CN", i.Locale())
	}
	got := i.T("panel.chat")
	if got != "对话" {
		t.Fatalf("T(panel.chat)=%q, want 对话", got)
	}
}

func TestNew_ChineseFromLang(t *testing.T) {
	i := New("zh_CN.UTF-8")
	if i.Locale() != "zh-CN" {
		t.Fatalf("Locale()=%q, want zh-CN", i.Locale())
	}
	got := i.T("panel.logs")
	if got != "日志" {
		t.Fatalf("T(panel.logs)=%q, want 日志", got)
	}
}

func TestT_WithArgs(t *testing.T) {
	i := New("en")
	got := i.T("files.none", "resume")
	if got != "No files found matching 'resume'" {
		t.Fatalf("T with args=%q, want No files found matching 'resume'", got)
	}
}

func TestT_MissingKey(t *testing.T) {
	i := New("en")
	got := i.T("nonexistent.key")
	if got != "nonexistent.key" {
		t.Fatalf("T missing key=%q, want key itself", got)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en_US.UTF-8", "en"},
		{"zh_CN.UTF-8", "zh-CN"},
		{"zh_TW", "zh-CN"},
		{"en", "en"},
		{"", "en"},
		{"fr_FR", "fr-FR"},
	}
	for _, tt := range tests {
		got := normalizeLocale(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeLocale(%q)=%q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNew_DetectsFromEnvironment(t *testing.T) {
	t.Setenv("ASSISTANT_LANG", "zh_CN.UTF-8")
	if got := New("").Locale(); got != LocaleZhCN {
		t.Fatalf("New(\"\").Locale()=%q, want zh-CN", got)
	}
	t.Setenv("ASSISTANT_LANG", "en_GB")
	if got := New("").Locale(); got != LocaleEN {
		t.Fatalf("New(\"\").Locale()=%q, want en", got)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	en := New("en")
	zh := New("zh-CN")
	if en.T("panel.chat") == zh.T("panel.chat") {
		t.Fatal("each instance should keep its own catalog")
	}
	if EnMessages["panel.chat"] != "Chat" {
		t.Fatal("building a zh-CN catalog must not modify the English one")
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	for k := range EnMessages {
		if _, ok := ZhCNMessages[k]; !ok {
			t.Errorf("zh-CN catalog missing %q", k)
		}
	}
	for k := range ZhCNMessages {
		if _, ok := EnMessages[k]; !ok {
			t.Errorf("zh-CN catalog has extra key %q", k)
		}
	}
}

func TestDetectLocale(t *testing.T) {
	t.Setenv("ASSISTANT_LANG", "zh_CN.UTF-8")
	if got := DetectLocale(); got != "zh-CN" {
		t.Fatalf("DetectLocale()=%q, want zh-CN", got)
	}
}
