// Package extractor turns a downloaded document into plain text (and, for
// images, a caption) according to spec.md §4.F's per-type dispatch table.
// Grounded on internal/ingestion/extractor/extractor.go's New/BestEffortNativeText/
// TryDocAI shape, generalized from the teacher's material/course domain to
// the new Document/ImageAsset types.
package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/clients/gcp"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
)

// Result carries the extracted text plus per-kind side artifacts (image
// caption/OCR) that the Ingestor folds into Document.Metadata.
type Result struct {
	Text           string
	Warning        string
	ImageCaption   string
	CaptionSource  string // "model" | "fallback"
	ImageOCRText   string
	ImageTags      []string
	NativeWidth    int
	NativeHeight   int
	ExtractionKind string // "docai" | "native" | "passthrough" | "image"
}

type Extractor struct {
	docai    gcp.DocAI
	vision   gcp.Vision
	captions generator.Captioner
	log      *logger.Logger
	cfg      config.IngestConfig
}

func New(docai gcp.DocAI, vision gcp.Vision, captions generator.Captioner, cfg config.IngestConfig, log *logger.Logger) *Extractor {
	return &Extractor{docai: docai, vision: vision, captions: captions, cfg: cfg, log: log.With("component", "Extractor")}
}

// Extract dispatches on MIME type / file extension, per spec.md §4.F:
//   - PDF/Office -> DocAI primary, native-text fallback when DocAI is
//     unavailable or its output is too sparse.
//   - XLSX/CSV -> logical-block extraction (one block per row, header-aware).
//   - HTML/JSON/MD/TXT -> pass-through normalization.
//   - Image -> Vision OCR + Generator caption.
//   - Audio/Video -> apperr.Unsupported (explicit Non-goal).
func (e *Extractor) Extract(ctx context.Context, originalName, mimeType, storageKey string, data []byte) (*Result, error) {
	kind := classify(originalName, mimeType, data)
	switch kind {
	case "pdf", "docx", "pptx":
		return e.extractDocument(ctx, mimeType, storageKey, data, originalName)
	case "xlsx":
		return e.extractXLSX(data, originalName)
	case "csv":
		return e.extractCSV(data, originalName)
	case "text":
		return e.extractText(originalName, mimeType, data)
	case "image":
		return e.extractImage(ctx, data, originalName)
	case "audio", "video":
		return nil, apperr.Unsupported("%s extraction is not supported", kind)
	default:
		return e.extractText(originalName, mimeType, data)
	}
}

func (e *Extractor) extractDocument(ctx context.Context, mimeType, storageKey string, data []byte, name string) (*Result, error) {
	if e.docai != nil && e.cfg.DocAIProjectID != "" && e.cfg.DocAIProcessorID != "" {
		res, err := e.docai.ProcessGCSOnline(ctx, gcp.DocAIProcessGCSRequest{
			ProjectID:   e.cfg.DocAIProjectID,
			Location:    e.cfg.DocAILocation,
			ProcessorID: e.cfg.DocAIProcessorID,
			MimeType:    mimeType,
			GCSURI:      fmt.Sprintf("gs://%s/%s", e.cfg.BucketName, storageKey),
		})
		if err == nil && charDensity(res.Text) >= e.cfg.MinCharDensity {
			return &Result{Text: collapseWhitespace(res.Text), ExtractionKind: "docai"}, nil
		}
		if err != nil {
			e.log.Warn("docai extraction failed, falling back to native text", "error", err, "file", name)
		}
	}
	txt, err := extractTextStrict(name, mimeType, data)
	if err != nil || strings.TrimSpace(txt) == "" {
		return &Result{Text: "", Warning: "extraction produced no text", ExtractionKind: "native"}, nil
	}
	return &Result{Text: collapseWhitespace(sanitizeUTF8(txt)), ExtractionKind: "native"}, nil
}

func (e *Extractor) extractText(name, mimeType string, data []byte) (*Result, error) {
	txt, err := extractTextStrict(name, mimeType, data)
	if err != nil {
		return &Result{Text: "", Warning: err.Error(), ExtractionKind: "passthrough"}, nil
	}
	return &Result{Text: collapseWhitespace(sanitizeUTF8(txt)), ExtractionKind: "passthrough"}, nil
}

// extractXLSX turns each sheet into a sequence of logical blocks, one per
// data row, so a row's values stay tied to their column headers instead of
// collapsing into one undifferentiated blob of cell text (spec.md §4.F
// "chunked by logical blocks"). Grounded on
// _examples/Turatime-Project/AOIplanner-main/pkg/climate/rules.go's
// excelize.OpenFile/GetRows usage, adapted to read from in-memory bytes
// instead of a path.
func (e *Extractor) extractXLSX(data []byte, name string) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return &Result{Text: "", Warning: fmt.Sprintf("open xlsx: %v", err), ExtractionKind: "native"}, nil
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		header := rows[0]
		for _, row := range rows[1:] {
			var b strings.Builder
			b.WriteString(sheet)
			b.WriteString(": ")
			for i, cell := range row {
				if strings.TrimSpace(cell) == "" {
					continue
				}
				col := fmt.Sprintf("col%d", i+1)
				if i < len(header) && strings.TrimSpace(header[i]) != "" {
					col = header[i]
				}
				if b.Len() > len(sheet)+2 {
					b.WriteString("; ")
				}
				b.WriteString(col)
				b.WriteString("=")
				b.WriteString(cell)
			}
			if block := b.String(); strings.TrimSpace(block) != sheet+":" {
				blocks = append(blocks, block)
			}
		}
	}
	if len(blocks) == 0 {
		return &Result{Text: "", Warning: "xlsx contained no data rows", ExtractionKind: "native"}, nil
	}
	return &Result{Text: collapseWhitespace(sanitizeUTF8(strings.Join(blocks, "\n"))), ExtractionKind: "native"}, nil
}

// extractCSV mirrors extractXLSX's header-aware row blocks for CSV uploads,
// in place of the plain-text passthrough every other text/* MIME type gets.
func (e *Extractor) extractCSV(data []byte, name string) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(sanitizeCSVBytes(data)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil || len(rows) == 0 {
		return &Result{Text: "", Warning: "csv contained no rows", ExtractionKind: "native"}, nil
	}
	header := rows[0]
	var blocks []string
	for _, row := range rows[1:] {
		var b strings.Builder
		for i, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			col := fmt.Sprintf("col%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				col = header[i]
			}
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(col)
			b.WriteString("=")
			b.WriteString(cell)
		}
		if block := b.String(); block != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return &Result{Text: "", Warning: "csv contained no data rows", ExtractionKind: "native"}, nil
	}
	return &Result{Text: collapseWhitespace(sanitizeUTF8(strings.Join(blocks, "\n"))), ExtractionKind: "native"}, nil
}

func sanitizeCSVBytes(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte("\x00"), nil)
}

func (e *Extractor) extractImage(ctx context.Context, data []byte, name string) (*Result, error) {
	res := &Result{ExtractionKind: "image"}
	if e.vision != nil {
		ocr, err := e.vision.OCRImageBytes(ctx, data, "image/png")
		if err != nil {
			e.log.Warn("vision OCR failed", "error", err, "file", name)
		} else if ocr != nil {
			res.ImageOCRText = collapseWhitespace(ocr.PrimaryText)
		}
	}
	if e.captions != nil {
		caption, source, err := e.captions.Caption(ctx, data, "image/png")
		if err != nil {
			e.log.Warn("caption generation failed", "error", err, "file", name)
			res.ImageCaption = ""
			res.CaptionSource = "fallback"
		} else {
			res.ImageCaption = caption
			res.CaptionSource = source
		}
	}
	res.Text = strings.TrimSpace(res.ImageCaption + "\n" + res.ImageOCRText)
	if res.Text == "" {
		res.Warning = "no caption or OCR text produced for image"
	}

	var tags []string
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		res.NativeWidth = cfg.Width
		res.NativeHeight = cfg.Height
		tags = append(tags, orientationTag(cfg.Width, cfg.Height))
		if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			tags = append(tags, dominantColorTag(img))
		}
		_ = format
	}
	tags = append(tags, filenameTokens(name)...)
	tags = append(tags, ocrTokens(res.ImageOCRText)...)
	tags = dedupTags(tags)
	if len(tags) > maxImageTags {
		tags = tags[:maxImageTags]
	}
	res.ImageTags = tags
	return res, nil
}

// maxImageTags bounds the tag set derived per image so a dense OCR
// transcript can't blow up ImageAsset.Tags into an unbounded column.
const maxImageTags = 24

// orientationTag classifies an image's aspect ratio into one of three
// coarse buckets, matching spec.md §4.F's "dominant color, orientation,
// filename tokens" visual tag set.
func orientationTag(w, h int) string {
	switch {
	case w == h:
		return "square"
	case w > h:
		return "landscape"
	default:
		return "portrait"
	}
}

// dominantColorTag samples a grid of pixels (full scan would be wasteful
// for large renders) and buckets the average into one of four simple hues
// (red, orange, green, blue) or three grayscale tags (white, gray, black),
// giving a coarse "tag" rather than a precise color value.
func dominantColorTag(img image.Image) string {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return ""
	}
	const grid = 16
	var rSum, gSum, bSum, n uint64
	stepX := maxInt(w/grid, 1)
	stepY := maxInt(h/grid, 1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			n++
		}
	}
	if n == 0 {
		return ""
	}
	r, g, b := float64(rSum)/float64(n), float64(gSum)/float64(n), float64(bSum)/float64(n)
	return classifyColor(r, g, b)
}

func classifyColor(r, g, b float64) string {
	max := maxFloat(r, maxFloat(g, b))
	min := minFloat(r, minFloat(g, b))
	if max-min < 18 {
		switch {
		case max > 200:
			return "white"
		case max < 60:
			return "black"
		default:
			return "gray"
		}
	}
	switch {
	case r >= g && r >= b && r-b > 30:
		if g > r*0.6 {
			return "orange"
		}
		return "red"
	case g >= r && g >= b:
		return "green"
	case b >= r && b >= g:
		return "blue"
	default:
		return "gray"
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// filenameTokens splits an upload's base name on non-alphanumeric runs,
// lowercases, and drops short/numeric fragments, giving a handful of
// content hints free of the file extension.
func filenameTokens(name string) []string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) < 3 || isNumericNoise(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ocrTokens lower-cases an OCR transcript's words and drops numeric-noise
// tokens (page numbers, timestamps, serials) before offering the rest up
// as tags, per spec.md §4.F "OCR tokens after numeric-noise filter."
func ocrTokens(ocr string) []string {
	fields := strings.FieldsFunc(ocr, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) < 4 || isNumericNoise(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// isNumericNoise drops tokens that are mostly digits, filtering page
// numbers and serials out of both filename and OCR-derived tags.
func isNumericNoise(tok string) bool {
	digits := 0
	for _, r := range tok {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return len(tok) > 0 && float64(digits)/float64(len(tok)) > 0.4
}

func dedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func classify(name, mime string, smallBytes []byte) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case strings.HasPrefix(m, "video/") || ext == ".mp4" || ext == ".mov" || ext == ".webm" || ext == ".mkv":
		return "video"
	case strings.HasPrefix(m, "audio/") || ext == ".mp3" || ext == ".wav" || ext == ".m4a" || ext == ".flac":
		return "audio"
	case strings.HasPrefix(m, "image/") || ext == ".png" || ext == ".jpg" || ext == ".jpeg" || ext == ".webp":
		return "image"
	case m == "application/pdf" || ext == ".pdf" || isPDFHeader(smallBytes):
		return "pdf"
	case ext == ".docx" || strings.Contains(m, "wordprocessingml"):
		return "docx"
	case ext == ".pptx" || strings.Contains(m, "presentationml"):
		return "pptx"
	case ext == ".xlsx" || strings.Contains(m, "spreadsheetml"):
		return "xlsx"
	case ext == ".csv" || m == "text/csv":
		return "csv"
	case strings.HasPrefix(m, "text/") || ext == ".txt" || ext == ".md" || ext == ".html" || ext == ".json":
		return "text"
	default:
		return "unknown"
	}
}

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func charDensity(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	printable := 0
	for _, r := range s {
		if r >= 32 || r == '\n' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(len([]rune(s)))
}

var htmlTagRE = regexp.MustCompile(`(?s)<[^>]*>`)

func extractTextStrict(name, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to extract")
	}
	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))
	if strings.HasPrefix(m, "text/") || m == "application/json" || ext == ".txt" || ext == ".md" ||
		ext == ".json" || ext == ".html" || ext == ".htm" {
		s := string(data)
		if m == "text/html" || ext == ".html" || ext == ".htm" {
			s = htmlTagRE.ReplaceAllString(s, " ")
		}
		return s, nil
	}
	printable := 0
	total := 0
	for _, r := range string(data) {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' || (r >= 32 && r != 127) {
			printable++
		}
	}
	if total > 0 && float64(printable)/float64(total) > 0.90 {
		return string(data), nil
	}
	return "", fmt.Errorf("extraction unsupported for mime=%q ext=%q", mime, ext)
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	var b strings.Builder
	blank := false
	for _, line := range strings.Split(s, "\n") {
		l := strings.Join(strings.Fields(line), " ")
		if l == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(l)
		blank = false
	}
	return b.String()
}

func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, " ")
}
