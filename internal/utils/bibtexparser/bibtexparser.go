package bibtexparser

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"appraisal_go_backend/internal/models"

	"github.com/nickng/bibtex"
)

var whitespace = regexp.MustCompile(`\s+`)

// FormatPapers renders papers as @article entries. Cite keys are the first
// author's surname followed by the upload year, with a letter suffix (a..z,
// aa, ab, ...) when two papers would share a key.
func FormatPapers(papers []models.Paper) string {
	bib := bibtex.NewBibTex()
	taken := make(map[string]bool, len(papers))
	next := make(map[string]int, len(papers))

	for _, p := range papers {
		base := CiteKey(p)
		key := base
		for taken[key] {
			next[base]++
			key = base + letterSuffix(next[base])
		}
		taken[key] = true

		entry := bibtex.NewBibEntry("article", key)
		entry.AddField("title", bibtex.NewBibConst(cleanFieldValue(p.Title)))
		if authors := authorList(p.Authors); authors != "" {
			entry.AddField("author", bibtex.NewBibConst(authors))
		}
		if abstract := cleanFieldValue(p.Abstract); abstract != "" {
			entry.AddField("abstract", bibtex.NewBibConst(abstract))
		}
		if len(p.Keywords) > 0 {
			entry.AddField("keywords", bibtex.NewBibConst(cleanFieldValue(strings.Join(p.Keywords, ", "))))
		}
		if !p.UploadDate.IsZero() {
			entry.AddField("year", bibtex.NewBibConst(strconv.Itoa(p.UploadDate.Year())))
		}
		bib.AddEntry(entry)
	}
	return bib.PrettyString()
}

// Parse reads BibTeX back into entries; used to check exported output.
func Parse(r io.Reader) ([]*bibtex.BibEntry, error) {
	bib, err := bibtex.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bibtex: %w", err)
	}
	return bib.Entries, nil
}

func CiteKey(p models.Paper) string {
	key := "paper"
	if len(p.Authors) > 0 {
		fields := strings.Fields(p.Authors[0].Name)
		if len(fields) > 0 {
			if surname := keyPart(fields[len(fields)-1]); surname != "" {
				key = surname
			}
		}
	}
	if !p.UploadDate.IsZero() {
		key += strconv.Itoa(p.UploadDate.Year())
	}
	return key
}

// letterSuffix returns the n-th (1-based) bijective base-26 suffix: a, b, ..., z, aa, ab, ...
func letterSuffix(n int) string {
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('a' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}

func keyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func authorList(authors []models.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if name := cleanFieldValue(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, " and ")
}

// cleanFieldValue strips braces and collapses whitespace so a value cannot
// break out of its {...} delimiters.
func cleanFieldValue(value string) string {
	value = strings.NewReplacer("{", "", "}", "").Replace(value)
	value = whitespace.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}
