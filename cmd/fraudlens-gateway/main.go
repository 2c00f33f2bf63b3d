package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/fraudlens/fraudlens/internal/audit"
	"github.com/fraudlens/fraudlens/internal/audit/sqlstore"
	"github.com/fraudlens/fraudlens/internal/config"
	"github.com/fraudlens/fraudlens/internal/decision"
	"github.com/fraudlens/fraudlens/internal/evidence"
	"github.com/fraudlens/fraudlens/internal/guardrail"
	"github.com/fraudlens/fraudlens/internal/metrics"
	"github.com/fraudlens/fraudlens/internal/narrative"
	"github.com/fraudlens/fraudlens/internal/pipeline"
	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/internal/server"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv); err != nil {
		fatalf("gateway error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string

func run(args []string, getenv envFn) error {
	fs := flag.NewFlagSet("fraudlens-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to fraudlens config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := firstNonEmpty(*configPath, getenv("FRAUDLENS_CONFIG_PATH"), "config/fraudlens.yaml")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	addr := firstNonEmpty(getenv("FRAUDLENS_LISTEN_ADDR"), cfg.ListenAddr, ":8080")
	policyPath := firstNonEmpty(getenv("FRAUDLENS_POLICY_PATH"), cfg.PolicyPath)

	srv, closeFn, err := newServer(policyPath, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	metrics.MustRegister()

	log.Printf("fraudlens-gateway listening on %s (policy %s)", addr, policyPath)
	if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newServer(policyPath string, cfg config.Config) (*server.Server, func(), error) {
	store, err := policy.NewStoreFromFile(policyPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := audit.Open(cfg.Audit.LogPath)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = logger.Close() }

	if cfg.Audit.SQLiteDSN != "" {
		mirror, err := sqlstore.Open(cfg.Audit.SQLiteDSN)
		if err != nil {
			// The JSONL log is the source of truth; the query mirror is
			// optional.
			log.Printf("audit mirror unavailable: %v", err)
		} else {
			logger.SetMirror(mirror)
			prev := closeFn
			closeFn = func() {
				prev()
				_ = mirror.Close()
			}
		}
	}

	var generator narrative.Generator
	if cfg.Generator.Enabled {
		timeout := cfg.Generator.Timeout()
		if timeout == 0 {
			timeout = narrative.DefaultTimeout
		}
		generator = narrative.NewClient(cfg.Generator.URL, cfg.Generator.Model, timeout)
	}

	svc := &pipeline.Service{
		Policies:  store,
		Engine:    decision.Engine{},
		Reader:    evidence.Reader{TopK: evidence.DefaultTopK},
		Generator: generator,
		Validator: guardrail.NewDefaultValidator(guardrail.Config{
			ForbiddenTerms:    cfg.Guardrail.ForbiddenTerms,
			NumericTolerance:  cfg.Guardrail.NumericTolerance,
			SmallIntegerBound: cfg.Guardrail.SmallIntegerBound,
		}),
		Audit: logger,
	}

	return server.New(svc, store, policyPath, cfg.Audit.LogPath), closeFn, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
