package services

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// CandidateInfo is the best-effort identity guess pulled from resume text.
// Any field may be empty; a follow-up manual-entry step corrects gaps.
type CandidateInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// MissingFields flags which identity fields the extraction could not find.
type MissingFields struct {
	Name  bool `json:"name"`
	Email bool `json:"email"`
	Phone bool `json:"phone"`
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	namePattern  = regexp.MustCompile(`(?m)^([A-Z][a-z]+\s+[A-Z][a-z]+)`)
)

// ExtractCandidateInfo guesses name, email and phone from resume text.
// First match wins for each pattern; no validation beyond the patterns.
func ExtractCandidateInfo(text string) CandidateInfo {
	info := CandidateInfo{
		Email: emailPattern.FindString(text),
		Phone: phonePattern.FindString(text),
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		info.Name = m[1]
	}
	return info
}

// Missing reports which fields are empty.
func (c CandidateInfo) Missing() MissingFields {
	return MissingFields{
		Name:  c.Name == "",
		Email: c.Email == "",
		Phone: c.Phone == "",
	}
}

// ExtractResumeText extracts plain text from a stored resume file. Only
// PDF and DOCX are supported.
func ExtractResumeText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDFText(path)
	case ".docx":
		return extractDOCXText(path)
	}
	return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return text, nil
}

// extractDOCXText reads the raw text of word/document.xml inside the DOCX
// archive. Paragraph boundaries become newlines.
func extractDOCXText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer archive.Close()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("DOCX has no document body")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX body: %w", err)
	}
	defer rc.Close()

	var textBuilder strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse DOCX body: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				textBuilder.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				textBuilder.Write(t)
			}
		}
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content found in DOCX")
	}
	return text, nil
}
