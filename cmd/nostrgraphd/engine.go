package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nugget/nostrgraph/adapters/funcdefcache"
	"github.com/nugget/nostrgraph/adapters/functionresolver"
	"github.com/nugget/nostrgraph/adapters/idcodec"
	"github.com/nugget/nostrgraph/adapters/langdetect"
	"github.com/nugget/nostrgraph/adapters/profilecache"
	"github.com/nugget/nostrgraph/adapters/relaytransport"
	"github.com/nugget/nostrgraph/adapters/telemetry"
	"github.com/nugget/nostrgraph/graph"
	"github.com/nugget/nostrgraph/graphdoc"
	"github.com/nugget/nostrgraph/internal/config"
	"github.com/nugget/nostrgraph/internal/httpkit"
	"github.com/nugget/nostrgraph/internal/paths"
)

// engine bundles a running graph.Runtime with the adapters and caches
// backing it.
type engine struct {
	runtime   *graph.Runtime
	bus       *graph.Diagnostics
	profiles  *profilecache.Cache
	funcdefs  *funcdefcache.Cache
	telemetry *telemetry.Publisher
}

func (e *engine) Close() {
	if e.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.telemetry.Stop(ctx); err != nil {
			slog.Default().Warn("telemetry stop failed", "error", err)
		}
	}
	if e.funcdefs != nil {
		e.funcdefs.Close()
	}
	if e.profiles != nil {
		e.profiles.Close()
	}
}

// buildEngine wires config into a ready-to-use graph.Runtime: the
// diagnostics bus, the relay transport, the GitHub-backed function
// resolver behind its bounded cache, the profile cache, and (if
// configured) the MQTT telemetry sidecar.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, func(), error) {
	bus := graph.NewDiagnostics()

	transport := relaytransport.New(logger)

	profiles, err := profilecache.Open(cfg.ProfileCache.Path, cfg.ProfileCache.MaxEntries, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open profile cache: %w", err)
	}

	httpClient := httpkit.NewClient(
		httpkit.WithTimeout(30*time.Second),
		httpkit.WithRetry(3, 2*time.Second),
		httpkit.WithLogger(logger),
	)
	resolver := functionresolver.New(httpClient, cfg.FuncResolver.Token, paths.New(nil), logger)

	funcdefs, err := funcdefcache.Open(
		cfg.FuncDefCache.Path,
		resolver,
		time.Duration(cfg.FuncDefCache.TTLSec)*time.Second,
		cfg.FuncDefCache.MaxEntries,
		logger,
	)
	if err != nil {
		profiles.Close()
		return nil, nil, fmt.Errorf("open funcdef cache: %w", err)
	}

	deps := graph.Deps{
		RelayTransport:   transport,
		FunctionResolver: funcdefs,
		IdentifierCodec:  idcodec.New(),
		LanguageDetector: langdetect.New(),
		NameLookup:       profiles,
		Nip07MaxRetries:  5,
		Nip07RetryDelay:  2 * time.Second,
		Logger:           logger,
	}

	rt := graph.New(deps, bus)

	e := &engine{runtime: rt, bus: bus, profiles: profiles, funcdefs: funcdefs}

	if cfg.Telemetry.Configured() {
		pub := telemetry.New(telemetry.Config{
			Broker:     cfg.Telemetry.BrokerURL,
			InstanceID: cfg.Telemetry.ClientID,
		}, logger)
		if err := pub.Start(ctx, bus); err != nil {
			logger.Warn("telemetry sidecar failed to start, continuing without it", "error", err)
		} else {
			e.telemetry = pub
		}
	}

	cleanup := func() { e.Close() }
	return e, cleanup, nil
}

func readGraphDoc(path string) (graphdoc.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graphdoc.Document{}, err
	}
	var doc graphdoc.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return graphdoc.Document{}, fmt.Errorf("parse graph document: %w", err)
	}
	return doc, nil
}

func writeGraphDoc(path string, doc graphdoc.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph document: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
