package model

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveTitleShortContent(t *testing.T) {
	if got := DeriveTitle("hello"); got != "hello" {
		t.Fatalf("expected content as title, got %q", got)
	}

	exact := strings.Repeat("a", 25)
	if got := DeriveTitle(exact); got != exact {
		t.Fatalf("expected 25-char content untruncated, got %q", got)
	}
}

func TestDeriveTitleTruncation(t *testing.T) {
	long := strings.Repeat("a", 26)
	got := DeriveTitle(long)
	if got != strings.Repeat("a", 25)+"..." {
		t.Fatalf("expected truncated title with ellipsis, got %q", got)
	}
}

func TestDeriveTitleMultibyte(t *testing.T) {
	long := strings.Repeat("ü", 30)
	got := DeriveTitle(long)
	if got != strings.Repeat("ü", 25)+"..." {
		t.Fatalf("expected rune-wise truncation, got %q", got)
	}
}

func TestPlaceholderTitle(t *testing.T) {
	if got := PlaceholderTitle("abcdef1234567890"); got != "Chat abcdef12" {
		t.Fatalf("unexpected placeholder: %q", got)
	}
	if got := PlaceholderTitle("ab"); got != "Chat ab" {
		t.Fatalf("short ids should not be sliced: %q", got)
	}
}

func TestLocalMessageID(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := LocalMessageID(at); got != "temp_user_1700000000123" {
		t.Fatalf("unexpected local id: %q", got)
	}
}
