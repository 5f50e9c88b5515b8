// Package export writes run output to disk: the processed text as a
// docx document and a per-segment run report as an xlsx workbook.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/xuri/excelize/v2"

	"scribeflow/internal/pipeline"
)

const (
	fontName = "Times New Roman"
	fontSize = 13
)

var (
	reHeading = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	reBullet  = regexp.MustCompile(`^[\-\*]\s+(.+)$`)
	reNumber  = regexp.MustCompile(`^\d+\.\s+(.+)$`)
)

// WriteDocx renders the result text to a styled docx. The text may be
// markdown-flavored (template outputs usually are); plain transcripts
// come through as ordinary paragraphs.
func WriteDocx(title, text, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	addRun(doc.AddParagraph(""), title, true, 16)
	doc.AddParagraph("")

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			continue
		}

		if m := reHeading.FindStringSubmatch(trimmed); m != nil {
			addRun(doc.AddParagraph(""), m[2], true, headingSize(len(m[1])))
			continue
		}
		if m := reBullet.FindStringSubmatch(trimmed); m != nil {
			addRun(doc.AddParagraph(""), "• "+m[1], false, fontSize)
			continue
		}
		if m := reNumber.FindStringSubmatch(trimmed); m != nil {
			addRun(doc.AddParagraph(""), trimmed, false, fontSize)
			continue
		}
		addRun(doc.AddParagraph(""), trimmed, false, fontSize)
	}

	if err := doc.SaveTo(outputPath); err != nil {
		return fmt.Errorf("save docx: %w", err)
	}
	return nil
}

// WriteRunReport writes an xlsx with one row per segment call, plus a
// summary row, so a failed run can be inspected without log diving.
func WriteRunReport(res pipeline.Result, artifactName, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"Segment", "Success", "Duration (ms)", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, seg := range res.Segments {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), seg.Index)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), seg.Success)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), seg.DurationMS)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), seg.Error)
	}

	summaryRow := len(res.Segments) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Artifact")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), artifactName)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+1), "Success")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+1), res.Success)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+2), "From cache")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+2), res.FromCache)
	if res.Warning != "" {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+3), "Warning")
		f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+3), res.Warning)
	}
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+4), "Generated")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+4), time.Now().Format(time.RFC3339))

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// OutputPaths derives the docx and xlsx paths for one artifact under
// the output directory, stamped to avoid collisions across runs.
func OutputPaths(outputDir, artifactName string) (docxPath, reportPath string) {
	base := strings.TrimSuffix(filepath.Base(artifactName), filepath.Ext(artifactName))
	stamp := time.Now().Format("20060102_150405")
	docxPath = filepath.Join(outputDir, fmt.Sprintf("%s_%s.docx", base, stamp))
	reportPath = filepath.Join(outputDir, fmt.Sprintf("%s_%s_report.xlsx", base, stamp))
	return docxPath, reportPath
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 15
	case 3:
		return 14
	default:
		return fontSize
	}
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	text = stripInlineMarkdown(text)
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

func stripInlineMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}
