package contour

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary is the serialised form of a contour.
type Summary struct {
	Method    string       `json:"method"`
	TimeStep  int          `json:"time_step"`
	Points    [][3]float64 `json:"points"`
	Perimeter float64      `json:"perimeter"`
	Area      float64      `json:"area"`
}

// Summarize flattens c for output.
func Summarize(c *Contour) Summary {
	s := Summary{
		Method:    c.Method,
		TimeStep:  c.TimeStep,
		Points:    make([][3]float64, len(c.Points)),
		Perimeter: c.Perimeter(),
		Area:      c.Area(),
	}
	for i, p := range c.Points {
		s.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return s
}

// ToJSON serialises contours to pretty JSON.
func ToJSON(cs []*Contour) (string, error) {
	out := make([]Summary, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			out = append(out, Summarize(c))
		}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSV writes one row per vertex with a header.
func ToCSV(cs []*Contour, precision int) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"time_step", "index", "x", "y", "z"})
	for _, c := range cs {
		if c == nil {
			continue
		}
		for i, p := range c.Points {
			_ = w.Write([]string{
				strconv.Itoa(c.TimeStep),
				strconv.Itoa(i),
				strconv.FormatFloat(p.X, 'f', precision, 64),
				strconv.FormatFloat(p.Y, 'f', precision, 64),
				strconv.FormatFloat(p.Z, 'f', precision, 64),
			})
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToText renders a human readable listing using the number formatting of tag.
func ToText(cs []*Contour, precision int, tag language.Tag) string {
	p := message.NewPrinter(tag)
	num := "%." + strconv.Itoa(max(precision, 0)) + "f"
	var sb strings.Builder
	for _, c := range cs {
		if c == nil {
			continue
		}
		sb.WriteString(p.Sprintf("time step %d: %s contour, %d points, perimeter "+num+", area "+num+"\n",
			c.TimeStep, c.Method, len(c.Points), c.Perimeter(), c.Area()))
		for i, pt := range c.Points {
			sb.WriteString(p.Sprintf("  %3d  "+num+"  "+num+"  "+num+"\n", i, pt.X, pt.Y, pt.Z))
		}
	}
	return sb.String()
}
