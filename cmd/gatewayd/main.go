// Command gatewayd is the process entry point: it loads an
// already-composed supergraph SDL from disk, wires subgraph endpoint
// overrides, and serves the federation.Pipeline over a minimal
// GraphQL-over-HTTP POST endpoint (spec §6). CLI dispatch beyond this is
// explicitly out of scope (spec §1's "the CLI and command dispatch");
// this file only covers the one subcommand needed to run the core at
// all, grounded on hanpama-protograph/cmd/protograph's flag.FlagSet
// subcommand shape rather than a cobra/cli framework the retrieval pack
// never uses for a gateway binary.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/thundergraph/gateway/federation"
	"github.com/thundergraph/gateway/logger"
	"github.com/thundergraph/gateway/observability"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/subgraph"
)

const rootUsage = `gatewayd — federated GraphQL query execution core

USAGE:
  gatewayd <command> [flags]

COMMANDS:
  serve   Run the GraphQL gateway against a composed supergraph SDL
  help    Show help for any command
`

const serveUsage = `serve FLAGS:
  -schema <file>               Composed supergraph SDL (required)
  -addr <addr>                 HTTP listen address (default: :8080)
  -subgraph <Name=URL>         Override a subgraph's endpoint URL. Repeatable
  -timeout <duration>          Default per-subgraph request timeout (default: 10s)
`

// subgraphFlag collects repeated -subgraph Name=URL flags, mirroring the
// teacher's own repeatable-flag pattern for per-service endpoint maps
// (hanpama-protograph/cmd/protograph's backendFlag).
type subgraphFlag struct {
	m map[string]string
}

func (s *subgraphFlag) String() string { return "" }

func (s *subgraphFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid -subgraph %q, want Name=URL", v)
	}
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "serve":
		return cmdServe(args[1:])
	case "help":
		fmt.Print(rootUsage)
		return nil
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdServe(args []string) error {
	var schemaPath, addr string
	var timeout time.Duration
	var sf subgraphFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaPath, "schema", "", "composed supergraph SDL file")
	fs.StringVar(&addr, "addr", ":8080", "HTTP listen address")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "default per-subgraph request timeout")
	fs.Var(&sf, "subgraph", "override a subgraph's endpoint URL (Name=URL)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if schemaPath == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-schema is required")
	}

	sdl, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	sch, err := schema.Build(string(sdl))
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	for i := range sch.Subgraphs() {
		sg := sch.Subgraph(schema.SubgraphID(i))
		if url, ok := sf.m[sg.Name]; ok {
			sg.URL = url
		}
	}

	// Register a tracer provider with no span processor: spans are
	// recorded and ended but never exported. Exporter wiring (OTLP,
	// Jaeger, ...) is out of scope per spec §1; this just gives
	// observability.Hooks a real recording tracer instead of the global
	// no-op, the seam a deployment would attach a batcher/exporter to.
	otel.SetTracerProvider(sdktrace.NewTracerProvider())

	transport := subgraph.New(subgraph.WithRequestTimeout(timeout))
	hooks, err := observability.New(otel.Tracer("gatewayd"), otel.Meter("gatewayd"), logger.New())
	if err != nil {
		return fmt.Errorf("observability setup: %w", err)
	}

	pipeline := federation.New(sch, transport, nil, hooks)

	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", graphQLHandler(pipeline))

	log.Printf("gatewayd listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// requestBody is the JSON shape spec §6 names for GraphQL-over-HTTP POST:
// {query, operationName?, variables?, extensions?}. Persisted-document
// resolution (the extensions.persistedQuery path) and APQ are out of
// scope per spec §1 -- they are consumed as an upstream normalization
// step that yields this same canonical body.
type requestBody struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

type responseBody struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []errorBody     `json:"errors,omitempty"`
}

type errorBody struct {
	Message    string                 `json:"message"`
	Path       []string               `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// graphQLHandler is the minimal POST binding spec §6 describes. CORS,
// multipart/event-stream negotiation, and GET-for-queries are transport
// wrapper concerns the spec explicitly scopes out of the core (§1); this
// handler exists only so the core has a runnable external surface.
func graphQLHandler(p *federation.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(responseBody{
				Errors: []errorBody{{Message: "malformed request body"}},
			})
			return
		}
		if body.Query == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(responseBody{
				Errors: []errorBody{{Message: "missing query"}},
			})
			return
		}

		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		res := p.Run(r.Context(), &federation.Request{
			Query:         body.Query,
			OperationName: body.OperationName,
			Variables:     body.Variables,
			Headers:       headers,
		})

		out := responseBody{Data: json.RawMessage(res.Data)}
		for _, e := range res.Errors {
			out.Errors = append(out.Errors, errorBody{
				Message:    e.ClientMessage(),
				Path:       e.Path,
				Extensions: map[string]interface{}{"code": string(e.Code)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
