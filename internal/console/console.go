// Package console holds the interactive prompts and the human-readable
// result listing of the CLI.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/maltedev/wb-listing-scraper/internal/models"
)

var affirmative = map[string]bool{
	"y":   true,
	"yes": true,
	"д":   true,
	"да":  true,
}

// IsAffirmative reports whether answer confirms a prompt.
func IsAffirmative(answer string) bool {
	return affirmative[strings.ToLower(strings.TrimSpace(answer))]
}

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Ask prints question and returns the trimmed answer, or "" on EOF.
func (p *Prompter) Ask(question string) string {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		return ""
	}
	return strings.TrimSpace(p.in.Text())
}

// Query asks for a search query, falling back to def on empty input.
func (p *Prompter) Query(def string) string {
	if q := p.Ask("Search query: "); q != "" {
		return q
	}
	return def
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(question string) bool {
	return IsAffirmative(p.Ask(question + " (y/n): "))
}

// DisplayResults prints one block per record, in order.
func DisplayResults(w io.Writer, query string, records []models.ProductRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No products found")
		return
	}

	rule := strings.Repeat("=", 100)
	sep := strings.Repeat("-", 100)

	fmt.Fprintf(w, "\nRESULTS FOR %q\n", query)
	fmt.Fprintf(w, "TOTAL PRODUCTS: %d\n", len(records))
	fmt.Fprintln(w, rule)

	for i, r := range records {
		fmt.Fprintf(w, "\nPRODUCT %d:\n", i+1)
		fmt.Fprintf(w, "   BRAND:   %s\n", r.Brand)
		fmt.Fprintf(w, "   NAME:    %s\n", r.Name)
		fmt.Fprintf(w, "   PRICE:   %s RUB\n", r.Price)
		fmt.Fprintf(w, "   RATING:  %s\n", r.Rating)
		fmt.Fprintf(w, "   REVIEWS: %s\n", r.Reviews)
		fmt.Fprintf(w, "   LINK:    %s\n", r.Link)
		fmt.Fprintln(w, sep)
	}
}
