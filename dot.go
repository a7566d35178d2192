package dbm

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"
)

// ToDot renders the layer structure as an undirected graphviz graph: one node per layer,
// one edge per weight matrix. Each node shows the owner of the bias the layer uses.
func (d *DBM) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("DBM"); err != nil {
		panic(err)
	}
	g.SetDir(false)

	var buf bytes.Buffer
	layers := d.Layers()
	for _, l := range layers {
		if err := tmpl.Execute(&buf, l); err != nil {
			panic(err)
		}
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		buf.Reset()
		if err := g.AddNode("DBM", l.String(), attrs); err != nil {
			panic(err)
		}
	}

	for _, l := range layers[1:] {
		attrs := map[string]string{
			"label": fmt.Sprintf("%q", fmt.Sprintf("%v %v", l.Weights, l.Weights.Shape())),
		}
		if err := g.AddEdge(layers[l.Index-1].String(), l.String(), false, attrs); err != nil {
			panic(err)
		}
	}
	return g.String()
}

const tmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Layer</TD><TD>{{.}}</TD></TR>
<TR><TD>Units</TD><TD>{{.Units}}</TD></TR>
<TR><TD>Role</TD><TD>{{.Role}}</TD></TR>
<TR><TD>Bias</TD><TD>{{.Bias}}</TD></TR>
</TABLE>
>`

var tmpl *template.Template

func init() {
	tmpl = template.Must(template.New("layer").Parse(tmplRaw))
}
