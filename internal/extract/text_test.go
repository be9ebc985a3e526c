package extract

import (
	"strings"
	"testing"
)

func TestVisibleText(t *testing.T) {
	page := `
	<html>
	<head><style>p { color: red }</style><script>var x = 1;</script></head>
	<body>
		<h1>Expense Reimbursement Policy</h1>
		<p>Expenses under   $50 need no approval.</p>
		<ul><li>Meals: $75 per day</li><li>Receipts over $25</li></ul>
	</body>
	</html>`

	text, err := VisibleText(page)
	if err != nil {
		t.Fatalf("VisibleText failed: %v", err)
	}

	if strings.Contains(text, "color") || strings.Contains(text, "var x") {
		t.Errorf("expected scripts and styles to be skipped, got %q", text)
	}
	for _, want := range []string{"Expense Reimbursement Policy\n", "Expenses under $50 need no approval.", "- Meals: $75 per day", "- Receipts over $25"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
	if strings.Contains(text, "\n\n\n") {
		t.Errorf("expected blank lines to be collapsed, got %q", text)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		contentType string
		content     string
		want        bool
	}{
		{"text/html; charset=utf-8", "", true},
		{"", "<!DOCTYPE html><html></html>", true},
		{"text/plain", "1. APPROVAL THRESHOLDS", false},
		{"", "# Policy\n\nExpenses must be approved.", false},
	}

	for _, tt := range tests {
		if got := LooksLikeHTML(tt.contentType, tt.content); got != tt.want {
			t.Errorf("LooksLikeHTML(%q, %q) = %v, want %v", tt.contentType, tt.content, got, tt.want)
		}
	}
}
