package server

import (
	"context"
	"os"
	"time"

	"sonagent/internal/agent"
	"sonagent/internal/config"
	"sonagent/internal/customer"
	"sonagent/internal/docstore"
	"sonagent/internal/embedding"
	"sonagent/internal/llm"
	"sonagent/internal/logging"
	"sonagent/internal/memory"
	"sonagent/internal/orders"
	"sonagent/internal/store"
)

// Session memory is swept hourly; conversations idle for a day are gone.
const (
	memoryCleanupInterval = time.Hour
	sessionMaxIdle        = 24 * time.Hour
)

// App holds every wired subsystem behind the serve command. Build order
// matters: model client, documents, agent service, memory. Documents and
// order lookup degrade to disabled instead of failing the boot.
type App struct {
	Config  *config.Config
	Server  *Server
	Service *agent.Service
	Memory  *memory.Manager

	db      *store.LocalStore
	watcher *docstore.Watcher
}

// BuildApp assembles the full serving stack from the configuration.
func BuildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.Boot("Initializing multi-agent system...")

	// 1. Model client. Construction never dials; a failed ping only warns
	// because the backend may still be warming up.
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if p, ok := client.(llm.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			logging.BootError("Model backend not reachable yet: %v", err)
		} else {
			logging.Boot("Model backend reachable (%s)", client.Name())
		}
		cancel()
	}
	handler := llm.NewHandler(client, cfg.Generation)

	app := &App{Config: cfg, Service: agent.NewService(handler, cfg.Generation)}

	// sqlite backs the turn archive and the semantic chunk cache. Neither
	// feature on means no database file.
	if cfg.Storage.ArchiveEnabled || cfg.EmbeddingEnabled() {
		db, err := store.NewLocalStore(cfg.Storage.DatabasePath)
		if err != nil {
			logging.BootError("Local store unavailable: %v", err)
		} else {
			app.db = db
		}
	}

	// 2. Documents. Consulting works without them, just with a disclaimer
	// in every reply, so failures here only log.
	app.buildDocuments(ctx, handler)

	// 3. Customer profiles and order lookup.
	if customers, err := customer.NewManager(cfg.Paths.ProfilesFile); err != nil {
		logging.BootError("Customer profiles unavailable: %v", err)
	} else {
		app.Service.SetCustomers(customers)
	}
	app.buildOrders(ctx)

	// 4. Session memory.
	app.Memory = memory.NewManager(cfg.Generation.MaxHistory)
	if cfg.Storage.ArchiveEnabled && app.db != nil {
		app.Memory.SetArchiver(app.db)
		logging.Boot("Conversation archive enabled (%s)", cfg.Storage.DatabasePath)
	}

	app.Server = New(cfg, app.Service, app.Memory)

	logging.Boot("Server ready")
	logging.Boot("  - PhanLoai: Enabled")
	logging.Boot("  - CreateOrder: Enabled")
	if app.Service.HasDocuments() {
		logging.Boot("  - Consulting: Enabled")
	} else {
		logging.Boot("  - Consulting: DEGRADED (no documents)")
	}
	if app.Service.HasOrders() {
		logging.Boot("  - CheckOrder: Enabled (source: %s)", app.Service.Orders().SourceName())
	} else {
		logging.Boot("  - CheckOrder: Disabled (no credentials.json, no orders file)")
	}
	return app, nil
}

// buildDocuments loads the document store, the smart search layer and the
// optional semantic index, then starts the directory watcher.
func (a *App) buildDocuments(ctx context.Context, handler *llm.Handler) {
	dir := a.Config.Paths.DocumentsDir
	if !fileExists(dir) {
		logging.Boot("Documents directory missing, writing samples to %s", dir)
		if err := docstore.CreateSampleStructure(dir); err != nil {
			logging.BootError("Sample documents failed: %v", err)
			return
		}
	}

	st, err := docstore.NewStore(dir)
	if err != nil {
		logging.BootError("Document store failed: %v", err)
		logging.BootError("Consulting will answer without document context")
		return
	}
	if err := st.Load(); err != nil {
		logging.BootError("Document load failed: %v", err)
		return
	}

	smart := docstore.NewSmart(st, handler)

	var idx *docstore.SemanticIndex
	if a.Config.EmbeddingEnabled() && a.db != nil {
		engine, err := embedding.NewEngine(a.Config.Embedding)
		if err != nil {
			logging.BootError("Embedding engine failed: %v", err)
		} else {
			idx = docstore.NewSemanticIndex(engine, a.db)
			if err := idx.WarmStart(ctx); err != nil {
				logging.BootError("Semantic index warm start failed: %v", err)
			}
			smart.SetSemanticIndex(idx)
			// Fresh chunks embed in the background; keyword search covers
			// the gap until indexing lands.
			go func() {
				if err := idx.Index(ctx, st); err != nil {
					logging.DocsWarn("semantic indexing failed: %v", err)
				}
			}()
		}
	}

	reload := func() {
		if err := st.Load(); err != nil {
			logging.DocsWarn("document reload failed: %v", err)
			return
		}
		if idx != nil {
			if err := idx.Index(ctx, st); err != nil {
				logging.DocsWarn("semantic reindex failed: %v", err)
			}
		}
	}
	watcher, err := docstore.NewWatcher(dir, reload)
	if err != nil {
		logging.DocsWarn("document watcher unavailable: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		logging.DocsWarn("document watcher failed to start: %v", err)
	} else {
		a.watcher = watcher
	}

	a.Service.SetDocuments(smart)
	logging.Boot("Documents: %d files, %d products", st.DocumentCount(), st.ProductCount())
}

// buildOrders picks the lookup source: Google Sheets when the service
// account file is present, the local CSV otherwise, disabled when neither
// exists.
func (a *App) buildOrders(ctx context.Context) {
	cfg := a.Config
	if fileExists(cfg.Paths.CredentialsPath) {
		src, err := orders.NewSheetsSource(ctx, cfg.Paths.CredentialsPath, "")
		if err != nil {
			logging.BootError("Google Sheets source failed: %v", err)
		} else {
			a.Service.SetOrders(orders.NewHandler(src))
			return
		}
	}
	if fileExists(cfg.Paths.OrdersFile) {
		a.Service.SetOrders(orders.NewHandler(orders.NewLocalSource(cfg.Paths.OrdersFile)))
		return
	}
	logging.Boot("No order source configured, check_order stays disabled")
}

// Run starts the background workers and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.Memory.RunCleanup(ctx, memoryCleanupInterval, sessionMaxIdle)
	return a.Server.ListenAndServe(ctx)
}

// Close stops the watcher and releases the database.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logging.Get(logging.CategoryStore).Error("close local store: %v", err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
