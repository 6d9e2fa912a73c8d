package glucose

import (
	"bytes"
	"html/template"

	"github.com/ruteri/dexcom-browser-source/interfaces"
)

var tableTemplate = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Glucose - last {{.Hours}}h</title></head>
<body>
<table class="readings">
<thead><tr><th>Time</th><th>Glucose ({{.Unit}})</th><th>Trend</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr class="reading"><td>{{.Time}}</td><td>{{.Value}}</td><td title="{{.Trend}}">{{.Arrow}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type tableRow struct {
	Time  string
	Value string
	Trend string
	Arrow string
}

func renderTable(series interfaces.ReadingSeries, unit interfaces.Unit, hours int) ([]byte, error) {
	rows := make([]tableRow, 0, len(series))
	for _, r := range series {
		rows = append(rows, tableRow{
			Time:  r.Timestamp().Format("2006-01-02 15:04"),
			Value: r.Format(unit),
			Trend: r.Trend().String(),
			Arrow: r.TrendArrow(),
		})
	}

	var buf bytes.Buffer
	err := tableTemplate.Execute(&buf, struct {
		Hours int
		Unit  string
		Rows  []tableRow
	}{hours, unit.String(), rows})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
