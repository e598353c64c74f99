package export

import (
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	bodyFont  = "Times New Roman"
	bodySize  = 13
	titleSize = 16
	inkColor  = "000000"
)

var (
	mdHeading   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	mdStrong    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdListItem  = regexp.MustCompile(`^(?:[\-\*+]|\d+[.)])\s+(.+)$`)
	sentenceGap = regexp.MustCompile(`([.!?。！？])\s+`)
)

// docBuilder appends uniformly styled paragraphs to one document
type docBuilder struct {
	doc *docx.RootDoc
}

func newDocBuilder(title string) (*docBuilder, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, err
	}
	b := &docBuilder{doc: doc}
	b.heading(title, titleSize)
	return b, nil
}

func (b *docBuilder) run(p *docx.Paragraph, text string, size uint64, bold bool) {
	r := p.AddText(cleanMarkdownInline(text)).Font(bodyFont).Size(size).Color(inkColor)
	if bold {
		r.Bold(true)
	}
}

func (b *docBuilder) heading(text string, size uint64) {
	b.run(b.doc.AddParagraph(""), text, size, true)
}

func (b *docBuilder) plain(text string) {
	b.run(b.doc.AddParagraph(""), text, bodySize, false)
}

// rich renders **strong** spans bold and everything else as body text
func (b *docBuilder) rich(text string) {
	p := b.doc.AddParagraph("")
	last := 0
	for _, loc := range mdStrong.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			b.run(p, text[last:loc[0]], bodySize, false)
		}
		b.run(p, text[loc[2]:loc[3]], bodySize, true)
		last = loc[1]
	}
	if last < len(text) {
		b.run(p, text[last:], bodySize, false)
	}
}

func (b *docBuilder) save(path string) error {
	return b.doc.SaveTo(path)
}

// markdownToDocx renders a summary: headings scale with level, list items
// become bullets, blank lines and rules are dropped
func markdownToDocx(title, markdown, outputPath string) error {
	b, err := newDocBuilder(title)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.Trim(line, "-*_") == "":
			continue
		case mdHeading.MatchString(line):
			m := mdHeading.FindStringSubmatch(line)
			b.heading(m[2], headingSize(len(m[1])))
		case mdListItem.MatchString(line):
			b.rich("• " + mdListItem.FindStringSubmatch(line)[1])
		default:
			b.rich(line)
		}
	}

	return b.save(outputPath)
}

// transcriptToDocx writes the raw transcript as paragraphs of a few sentences
func transcriptToDocx(title, transcript, outputPath string) error {
	b, err := newDocBuilder(title)
	if err != nil {
		return err
	}
	b.doc.AddParagraph("")

	for _, para := range transcriptParagraphs(transcript, 4) {
		b.plain(para)
	}

	return b.save(outputPath)
}

// transcriptParagraphs keeps blank-line paragraphs and splits long blocks
// every perPara sentences
func transcriptParagraphs(transcript string, perPara int) []string {
	var out []string
	for _, block := range strings.Split(transcript, "\n\n") {
		block = strings.Join(strings.Fields(block), " ")
		if block == "" {
			continue
		}

		sentences := strings.Split(sentenceGap.ReplaceAllString(block, "$1\x00"), "\x00")
		for i := 0; i < len(sentences); i += perPara {
			end := min(i+perPara, len(sentences))
			out = append(out, strings.Join(sentences[i:end], " "))
		}
	}
	return out
}

func headingSize(level int) uint64 {
	if level >= 4 {
		return bodySize
	}
	return uint64(titleSize + 1 - level)
}

func cleanMarkdownInline(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}
