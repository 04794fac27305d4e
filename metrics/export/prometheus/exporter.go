package prometheus

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is what the exporter reads. Implemented by *linkauth.Engine.
type Source interface {
	MetricsSnapshot() linkauth.MetricsSnapshot
	AuditDropped() uint64
}

type Exporter struct {
	source Source
}

func New(source Source) *Exporter {
	return &Exporter{source: source}
}

func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		_ = p.Encode(w)
	})
}

// Render returns the exposition as a string. Empty when metrics are disabled.
func (p *Exporter) Render() string {
	var b strings.Builder
	_ = p.Encode(&b)
	return b.String()
}

// Encode writes every counter, histogram and the audit drop counter in
// definition order.
func (p *Exporter) Encode(w io.Writer) error {
	if p == nil || p.source == nil {
		return nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	bw := bufio.NewWriterSize(w, 8192)
	for _, def := range internaldefs.CounterDefs {
		writeHeader(bw, def.Name, def.Help, "counter")
		writeSample(bw, def.Name, "", snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		writeHeader(bw, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			writeSample(bw, def.Name+"_bucket", `le="`+le+`"`, cumulative[i])
		}
		writeSample(bw, def.Name+"_count", "", cumulative[len(cumulative)-1])
		// Observations are bucketed only; no running sum is kept.
		writeSample(bw, def.Name+"_sum", "", 0)
	}
	writeHeader(bw, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	writeSample(bw, internaldefs.AuditDroppedName, "", dropped)
	return bw.Flush()
}

func writeHeader(w *bufio.Writer, name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeSample(w *bufio.Writer, name, labels string, v uint64) {
	w.WriteString(name)
	if labels != "" {
		w.WriteString("{" + labels + "}")
	}
	w.WriteByte(' ')
	w.WriteString(strconv.FormatUint(v, 10))
	w.WriteByte('\n')
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
