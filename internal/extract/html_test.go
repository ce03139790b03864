package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const sampleHTML = `<!doctype html>
<html>
<head><title>Course Notes</title><style>body{color:red}</style></head>
<body>
<nav>Home | About</nav>
<script>console.log("tracking")</script>
<h1>Thermodynamics</h1>
<p>Entropy   measures
disorder.</p>
<footer>Copyright</footer>
</body>
</html>`

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sampleHTML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	text := SelectionText(doc.Selection)
	if text != "Thermodynamics Entropy measures disorder." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestHTMLTextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.html")
	if err := os.WriteFile(path, []byte(sampleHTML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	text, err := HTMLTextFromFile(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "Entropy measures disorder.") {
		t.Fatalf("unexpected text: %q", text)
	}
	if strings.Contains(text, "tracking") || strings.Contains(text, "Copyright") {
		t.Fatalf("chrome not stripped: %q", text)
	}
}

func TestTextPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain study notes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	text, err := Text(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "plain study notes" {
		t.Fatalf("unexpected text: %q", text)
	}
}
