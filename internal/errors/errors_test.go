package errors

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
)

func TestNewRegisteredCode(t *testing.T) {
	err := New("T001")
	if err.Code != "T001" {
		t.Errorf("Code = %q, want T001", err.Code)
	}
	if err.Category != CategoryProtocol {
		t.Errorf("Category = %q, want protocol", err.Category)
	}
	if err.Message != "Malformed frame" {
		t.Errorf("Message = %q", err.Message)
	}
	if got := err.Error(); got != "T001: Malformed frame" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("T999")
	if err.Code != "T999" || err.Message != "Unknown error" {
		t.Errorf("got %+v, want unknown-error placeholder", err)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "flag %q not recognized", "--fast")
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want cli", err.Category)
	}
	if got := err.Error(); got != `flag "--fast" not recognized` {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New("T400").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	var terr *Error
	if !stderrors.As(error(err), &terr) || terr.Code != "T400" {
		t.Error("errors.As failed to recover *Error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "T400") != nil {
		t.Error("FromError(nil) != nil")
	}

	orig := New("T001")
	if got := FromError(orig, "T400"); got != orig {
		t.Error("FromError must pass structured errors through unchanged")
	}

	cause := stderrors.New("boom")
	got := FromError(cause, "T400")
	if got.Code != "T400" || got.Wrapped != cause {
		t.Errorf("FromError = %+v", got)
	}
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New("T003").
		WithDetail("A 32MB frame arrived.").
		WithSuggestion("Split the payload.")
	if err.Detail != "A 32MB frame arrived." || err.Suggestion != "Split the payload." {
		t.Errorf("got %+v", err)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("T002").Wrap(stderrors.New("client sent version 9"))
	out := err.Format()
	for _, want := range []string{
		"ERROR T002: Protocol version mismatch",
		"The client announced a protocol version",
		"Caused by: client sent version 9",
		"Hint: Upgrade the client or server",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	if got := New("T300").FormatCompact(); got != "T300: Session limit reached" {
		t.Errorf("FormatCompact = %q", got)
	}
	if got := Newf(CategorySession, "just text").FormatCompact(); got != "just text" {
		t.Errorf("FormatCompact = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	out := New("T401").WithSuggestion("Run the init command.").FormatJSON()

	var decoded map[string]string
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, out)
	}
	if decoded["code"] != "T401" || decoded["category"] != "config" {
		t.Errorf("decoded = %v", decoded)
	}
	if decoded["suggestion"] != "Run the init command." {
		t.Errorf("suggestion = %q", decoded["suggestion"])
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	for i, line := range lines {
		if len(line) > 20 {
			t.Errorf("line %d exceeds width: %q", i, line)
		}
	}
	if wrapText("", 20) != nil {
		t.Error("wrapText(\"\") != nil")
	}
	if got := wrapText("short", 20); len(got) != 1 || got[0] != "short" {
		t.Errorf("wrapText(short) = %v", got)
	}
}
