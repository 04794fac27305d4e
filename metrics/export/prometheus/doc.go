// Package prometheus renders linkauth metrics in the Prometheus text
// exposition format. Nothing is registered globally; mount [Exporter.Handler]
// where the scraper expects it.
package prometheus
