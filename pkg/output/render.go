package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/gosheets/pkg/sheet"
)

// WriteSheet emits a columns record followed by one row record per row.
func WriteSheet(ctx context.Context, w Writer, tbl *sheet.Table) error {
	if err := w.WriteColumns(ctx, &ColumnsRecord{Sheet: tbl.Name, Columns: tbl.Columns}); err != nil {
		return err
	}
	for i, cells := range tbl.Rows {
		if err := w.WriteRow(ctx, &RowRecord{Index: i, Values: RowValues(tbl.Columns, cells)}); err != nil {
			return err
		}
	}
	return nil
}

// RenderTable writes tbl as an aligned text table with an upper-case header.
func RenderTable(w io.Writer, tbl *sheet.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		header[i] = strings.ToUpper(c.Name)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}

	line := make([]string, len(tbl.Columns))
	for _, cells := range tbl.Rows {
		for i := range line {
			line[i] = ""
			if i < len(cells) {
				line[i] = tableCell(cells[i])
			}
		}
		if _, err := fmt.Fprintln(tw, strings.Join(line, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// tableCell keeps embedded tabs and newlines from breaking alignment.
func tableCell(v any) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(FormatCell(v))
}

// RenderYAML writes tbl as a YAML document. Row mappings keep column order.
func RenderYAML(w io.Writer, tbl *sheet.Table) error {
	rows := &yaml.Node{Kind: yaml.SequenceNode}
	for _, cells := range tbl.Rows {
		row := &yaml.Node{Kind: yaml.MappingNode}
		for i, c := range tbl.Columns {
			var v any
			if i < len(cells) {
				v = CellValue(cells[i])
			}
			val := &yaml.Node{}
			if err := val.Encode(v); err != nil {
				return fmt.Errorf("encode %s: %w", c.Name, err)
			}
			row.Content = append(row.Content, scalar(c.Name), val)
		}
		rows.Content = append(rows.Content, row)
	}

	cols := &yaml.Node{}
	if err := cols.Encode(tbl.Columns); err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalar("name"), scalar(tbl.Name),
			scalar("source"), scalar(tbl.Source),
			scalar("columns"), cols,
			scalar("rows"), rows,
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
