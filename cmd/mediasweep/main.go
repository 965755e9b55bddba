// Command mediasweep runs retention policies against the media catalog.
//
// By default a run is a read-only preview of what the selected policy would
// retire. Pass -execute to actually reclaim storage and mark records.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mediasweep/mediasweep/internal/logger"
	"github.com/mediasweep/mediasweep/pkg/backend"
	"github.com/mediasweep/mediasweep/pkg/catalog"
	"github.com/mediasweep/mediasweep/pkg/config"
	"github.com/mediasweep/mediasweep/pkg/metrics"
	"github.com/mediasweep/mediasweep/pkg/retention"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	policyName := flag.String("policy", "", "Policy to run (see -list-policies)")
	listPolicies := flag.Bool("list-policies", false, "List built-in policies and exit")
	execute := flag.Bool("execute", false, "Actually reclaim storage; without this flag only a preview is printed")
	showConfig := flag.Bool("show-config", false, "Print the effective configuration and exit")

	// Per-run policy overrides
	limit := flag.Int("limit", 0, "Override the policy's record limit")
	batchSize := flag.Int("batch-size", 0, "Override the engine batch size")
	owner := flag.String("owner", "", "Restrict the run to one content owner")

	flag.Parse()

	if *listPolicies {
		printPolicies()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}
	logger.SetLevel(cfg.Logging.Level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	if *showConfig {
		echoConfig(cfg)
		return
	}

	policy, err := resolvePolicy(cfg, *policyName, *limit, *batchSize, *owner)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGINT/SIGTERM turn into cooperative cancellation: the engine finishes
	// the record in flight and reports partial results.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping after current record...")
		cancel()
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	store, err := config.CreateCatalogStore(ctx, &cfg.Catalog)
	if err != nil {
		log.Fatalf("Failed to create catalog store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close catalog store: %v", err)
		}
	}()

	if !*execute {
		if err := runPreview(ctx, store, cfg, policy); err != nil {
			log.Fatalf("Preview failed: %v", err)
		}
		return
	}

	if err := runExecute(ctx, store, cfg, policy); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

// resolvePolicy looks up the named preset and applies CLI overrides.
func resolvePolicy(cfg *config.Config, name string, limit, batchSize int, owner string) (retention.Policy, error) {
	if name == "" {
		return retention.Policy{}, fmt.Errorf("no policy selected: pass -policy (see -list-policies)")
	}

	policy, ok := retention.Presets()[name]
	if !ok {
		return retention.Policy{}, fmt.Errorf("unknown policy %q (see -list-policies)", name)
	}

	// Engine-wide defaults first, explicit flags on top.
	if policy.Limit == 0 {
		policy.Limit = cfg.Engine.Limit
	}
	if policy.BatchSize == 0 {
		policy.BatchSize = cfg.Engine.BatchSize
	}
	if limit > 0 {
		policy.Limit = limit
	}
	if batchSize > 0 {
		policy.BatchSize = batchSize
	}
	if owner != "" {
		policy.OwnerIn = []string{owner}
	}

	return policy, policy.Validate()
}

func runPreview(ctx context.Context, store catalog.Store, cfg *config.Config, policy retention.Policy) error {
	analyzer := retention.NewAnalyzer(store, cfg.Classifier)
	preview, err := analyzer.Preview(ctx, policy)
	if err != nil {
		return err
	}

	fmt.Printf("Policy %q would retire %d records (%d bytes)\n", preview.Policy, preview.Total, preview.TotalBytes)
	for kind, count := range preview.ByKind {
		fmt.Printf("  %s: %d\n", kind, count)
	}
	if preview.Total > 0 {
		fmt.Printf("  oldest: %v, newest: %v\n", preview.OldestAge.Round(time.Hour), preview.NewestAge.Round(time.Hour))
		fmt.Println("Sample:")
		for _, rec := range preview.Sample {
			fmt.Printf("  %s  owner=%s status=%s size=%d locator=%s\n",
				rec.ID, rec.Owner, rec.Status, rec.SizeBytes, rec.StorageLocator)
		}
	}
	fmt.Println("\nThis was a preview. Pass -execute to reclaim storage.")
	return nil
}

func runExecute(ctx context.Context, store catalog.Store, cfg *config.Config, policy retention.Policy) error {
	pins, err := createPinBackend(cfg)
	if err != nil {
		return err
	}
	objects, err := createObjectBackend(ctx, cfg)
	if err != nil {
		return err
	}

	bcast := retention.NewBroadcaster()
	bcast.Subscribe(retention.ConsoleSubscriber{})

	exec, err := retention.NewExecutor(retention.ExecutorConfig{
		Catalog:     store,
		Pins:        pins,
		Objects:     objects,
		Rules:       cfg.Classifier,
		BatchPause:  cfg.Engine.BatchPause,
		Broadcaster: bcast,
		Metrics:     metrics.NewRetentionMetrics(),
	})
	if err != nil {
		return err
	}

	// The metrics endpoint lives only as long as the run; mediasweep is a
	// batch tool, not a daemon.
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Warn("Metrics server error: %v", err)
			}
		}()
	}

	result, err := exec.Run(ctx, policy)
	if result != nil {
		fmt.Println(result.Summary())
	}
	if err != nil && result != nil && result.Status == retention.StatusCancelled {
		// Cancellation is an operator action, not a failure.
		return nil
	}
	return err
}

// createPinBackend builds the pin adapter, or returns nil when the section
// is unconfigured. Runs over object-store-only catalogs don't need one.
func createPinBackend(cfg *config.Config) (backend.PinBackend, error) {
	if len(cfg.Backends.Pin) == 0 {
		logger.Warn("No pin backend configured; content-addressed records will fail")
		return nil, nil
	}
	return config.CreatePinBackend(cfg.Backends.Pin)
}

func createObjectBackend(ctx context.Context, cfg *config.Config) (backend.ObjectBackend, error) {
	if len(cfg.Backends.ObjectStore) == 0 {
		logger.Warn("No object store configured; object-store records will fail")
		return nil, nil
	}
	return config.CreateObjectBackend(ctx, cfg.Backends.ObjectStore)
}

func printPolicies() {
	presets := retention.Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Built-in policies:")
	for _, name := range names {
		p := presets[name]
		var parts []string
		if len(p.StatusIn) > 0 {
			statuses := make([]string, len(p.StatusIn))
			for i, s := range p.StatusIn {
				statuses[i] = string(s)
			}
			parts = append(parts, "status in "+strings.Join(statuses, ","))
		}
		if p.MinAgeDays > 0 {
			parts = append(parts, fmt.Sprintf("older than %d days", p.MinAgeDays))
		}
		if p.MaxViews > 0 {
			parts = append(parts, fmt.Sprintf("at most %d views", p.MaxViews))
		}
		if p.OrphanedOnly {
			parts = append(parts, "no stored bytes")
		}
		fmt.Printf("  %-18s %s\n", name, strings.Join(parts, ", "))
	}
}

// echoConfig prints the effective configuration after defaults, with
// credentials masked.
func echoConfig(cfg *config.Config) {
	masked := *cfg
	if _, ok := masked.Backends.ObjectStore["secret_access_key"]; ok {
		// Shallow-copy the map before masking.
		objectStore := make(map[string]any, len(masked.Backends.ObjectStore))
		for k, v := range masked.Backends.ObjectStore {
			objectStore[k] = v
		}
		objectStore["secret_access_key"] = "********"
		masked.Backends.ObjectStore = objectStore
	}

	out, err := yaml.Marshal(&masked)
	if err != nil {
		log.Fatalf("Failed to render configuration: %v", err)
	}
	fmt.Print(string(out))
}
