// Package main provides a minimal HTTP server exposing debug endpoints for a
// flowsim process: health, expvar, pprof, and a Prometheus-compatible view of
// the simulation counters.
package main

import (
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof
	"os"
	"sort"
	"strings"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "flowsim server is running. See /healthz, /metrics, /debug/vars, /debug/pprof/")
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})

	// Prometheus-compatible metrics endpoint (no external deps)
	mux.HandleFunc("/metrics", promMetricsHandler)

	addr := ":8080"
	if v := os.Getenv("FLOWSIM_ADDR"); v != "" {
		addr = v
	}
	log.Printf("Starting flowsim server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// promMetricsHandler renders expvar-published metrics in Prometheus text
// exposition format. The simulation counters get proper HELP/TYPE metadata;
// other numeric expvar vars fall back to untyped gauges.
func promMetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	type meta struct {
		typ, help string
	}
	metas := map[string]meta{
		"flowsim_steps_total":            {typ: "counter", help: "Simulation steps completed"},
		"flowsim_loop_iterations_total":  {typ: "counter", help: "Fixed-point loop iterations executed"},
		"flowsim_node_evaluations_total": {typ: "counter", help: "Component evaluations executed"},
		"flowsim_nonconvergences_total":  {typ: "counter", help: "Loop stages that hit the iteration cap"},
		"flowsim_rollbacks_total":        {typ: "counter", help: "Steps rolled back after a computation error"},
		"flowsim_checkpoints_total":      {typ: "counter", help: "Checkpoints persisted"},
	}

	varNames := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		varNames = append(varNames, kv.Key)
	})
	sort.Strings(varNames)

	for _, name := range varNames {
		v := expvar.Get(name)
		m, known := metas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", name)
				_, _ = fmt.Fprintf(w, "%s %s\n", name, iv.String())
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		_, _ = fmt.Fprintf(w, "%s %s\n", name, v.String())
	}
}

func sanitizeHelp(s string) string {
	// Newlines are not legal in HELP lines
	return strings.ReplaceAll(s, "\n", " ")
}
