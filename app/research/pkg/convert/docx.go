package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// NativeConverter 不依赖 pandoc 的 markdown -> docx 转换
type NativeConverter struct{}

func (NativeConverter) Convert(ctx context.Context, src, dst string) error {
	if format(src) != "markdown" || format(dst) != "docx" {
		return fmt.Errorf("%w: %s -> %s", ErrUnsupported, src, dst)
	}
	md, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := RenderDocx(md)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// RenderDocx 将 GFM markdown 渲染为 docx 文件内容
func RenderDocx(md []byte) ([]byte, error) {
	doc := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(md))

	w := &docxWriter{src: md}
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, 0, false)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML()},
		{"word/document.xml", documentHeader + w.body.String() + documentFooter},
	}
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(f.body)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type runStyle struct {
	bold   bool
	italic bool
	strike bool
	code   bool
}

type docxWriter struct {
	src  []byte
	body strings.Builder
}

const indentStep = 420

func (w *docxWriter) block(n ast.Node, indent int, quote bool) {
	switch n := n.(type) {
	case *ast.Heading:
		w.paragraph(fmt.Sprintf("Heading%d", min(n.Level, 6)), 0, "", n)
	case *ast.Paragraph, *ast.TextBlock:
		style := ""
		if quote {
			style = "Quote"
		}
		w.paragraph(style, indent, "", n)
	case *ast.List:
		w.list(n, indent, quote)
	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, indent+1, true)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			line := strings.TrimRight(string(seg.Value(w.src)), "\r\n")
			w.body.WriteString(pOpen("Code", indent))
			w.run(&w.body, line, runStyle{code: true})
			w.body.WriteString("</w:p>")
		}
	case *ast.ThematicBreak:
		w.body.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`)
	case *east.Table:
		w.table(n)
	case *ast.HTMLBlock:
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, indent, quote)
		}
	}
}

func (w *docxWriter) list(l *ast.List, indent int, quote bool) {
	i := 0
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", l.Start+i)
		}
		i++
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch c.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if first {
					w.paragraph("", indent+1, marker, c)
					first = false
					continue
				}
				w.paragraph("", indent+1, "", c)
			default:
				w.block(c, indent+1, quote)
			}
		}
		if first {
			w.body.WriteString(pOpen("", indent+1))
			w.run(&w.body, marker, runStyle{})
			w.body.WriteString("</w:p>")
		}
	}
}

func (w *docxWriter) table(t *east.Table) {
	cols := 0
	if h := t.FirstChild(); h != nil {
		cols = h.ChildCount()
	}
	w.body.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(&w.body, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="auto"/>`, side)
	}
	w.body.WriteString(`</w:tblBorders></w:tblPr><w:tblGrid>`)
	for i := 0; i < cols; i++ {
		w.body.WriteString(`<w:gridCol/>`)
	}
	w.body.WriteString(`</w:tblGrid>`)

	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		w.body.WriteString("<w:tr>")
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			w.body.WriteString(`<w:tc><w:tcPr><w:tcW w:w="0" w:type="auto"/></w:tcPr><w:p>`)
			w.inlines(&w.body, cell, runStyle{bold: header})
			w.body.WriteString("</w:p></w:tc>")
		}
		w.body.WriteString("</w:tr>")
	}
	w.body.WriteString("</w:tbl><w:p/>")
}

func (w *docxWriter) paragraph(style string, indent int, prefix string, n ast.Node) {
	w.body.WriteString(pOpen(style, indent))
	if prefix != "" {
		w.run(&w.body, prefix, runStyle{})
	}
	w.inlines(&w.body, n, runStyle{})
	w.body.WriteString("</w:p>")
}

func (w *docxWriter) inlines(sb *strings.Builder, n ast.Node, st runStyle) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			w.run(sb, string(c.Segment.Value(w.src)), st)
			if c.HardLineBreak() {
				sb.WriteString("<w:r><w:br/></w:r>")
			} else if c.SoftLineBreak() {
				w.run(sb, " ", st)
			}
		case *ast.String:
			w.run(sb, string(c.Value), st)
		case *ast.Emphasis:
			s := st
			if c.Level >= 2 {
				s.bold = true
			} else {
				s.italic = true
			}
			w.inlines(sb, c, s)
		case *east.Strikethrough:
			s := st
			s.strike = true
			w.inlines(sb, c, s)
		case *ast.CodeSpan:
			s := st
			s.code = true
			w.inlines(sb, c, s)
		case *ast.AutoLink:
			w.run(sb, string(c.URL(w.src)), st)
		case *ast.Image:
			w.run(sb, "[图片: "+w.plain(c)+"]", st)
		case *east.TaskCheckBox:
			box := "☐ "
			if c.IsChecked {
				box = "☑ "
			}
			w.run(sb, box, st)
		case *ast.RawHTML:
		default:
			w.inlines(sb, c, st)
		}
	}
}

func (w *docxWriter) plain(n ast.Node) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(w.src))
		case *ast.String:
			sb.Write(c.Value)
		default:
			sb.WriteString(w.plain(c))
		}
	}
	return sb.String()
}

func (w *docxWriter) run(sb *strings.Builder, s string, st runStyle) {
	if s == "" {
		return
	}
	sb.WriteString("<w:r>")
	if st.bold || st.italic || st.strike || st.code {
		sb.WriteString("<w:rPr>")
		if st.code {
			sb.WriteString(`<w:rFonts w:ascii="Consolas" w:hAnsi="Consolas"/>`)
		}
		if st.bold {
			sb.WriteString("<w:b/>")
		}
		if st.italic {
			sb.WriteString("<w:i/>")
		}
		if st.strike {
			sb.WriteString("<w:strike/>")
		}
		sb.WriteString("</w:rPr>")
	}
	sb.WriteString(`<w:t xml:space="preserve">`)
	sb.WriteString(esc(s))
	sb.WriteString("</w:t></w:r>")
}

func pOpen(style string, indent int) string {
	if style == "" && indent == 0 {
		return "<w:p>"
	}
	var sb strings.Builder
	sb.WriteString("<w:p><w:pPr>")
	if style != "" {
		fmt.Fprintf(&sb, `<w:pStyle w:val="%s"/>`, style)
	}
	if indent > 0 {
		fmt.Fprintf(&sb, `<w:ind w:left="%d"/>`, indent*indentStep)
	}
	sb.WriteString("</w:pPr>")
	return sb.String()
}

func esc(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="851" w:footer="992" w:gutter="0"/></w:sectPr></w:body></w:document>`

// 标题字号，单位半磅
var headingSizes = [...]int{36, 32, 28, 26, 24, 22}

func stylesXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="宋体"/><w:sz w:val="22"/></w:rPr></w:rPrDefault>
<w:pPrDefault><w:pPr><w:spacing w:after="120" w:line="300" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
`)
	for i, size := range headingSizes {
		fmt.Fprintf(&sb, `<w:style w:type="paragraph" w:styleId="Heading%[1]d"><w:name w:val="heading %[1]d"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="%[2]d"/></w:pPr><w:rPr><w:b/><w:sz w:val="%[3]d"/></w:rPr></w:style>
`, i+1, i, size)
	}
	sb.WriteString(`<w:style w:type="paragraph" w:styleId="Quote"><w:name w:val="Quote"/><w:basedOn w:val="Normal"/><w:rPr><w:i/><w:color w:val="595959"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Code"><w:name w:val="Code"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:after="0"/><w:shd w:val="clear" w:color="auto" w:fill="F2F2F2"/></w:pPr><w:rPr><w:rFonts w:ascii="Consolas" w:hAnsi="Consolas"/><w:sz w:val="20"/></w:rPr></w:style>
</w:styles>`)
	return sb.String()
}
