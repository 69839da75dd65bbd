// Command walletcore is the process entrypoint: it wires configuration,
// the account store, the fee cache, the send pipeline, and an optional
// debug HTTP surface, then serves until terminated. The real FFI/CLI
// boundary is internal/ffi's Core; this binary only constructs one and
// keeps it alive (spec.md §6 "CLI/FFI surface").
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airbitz-style/walletcore/internal/accountserver"
	"github.com/airbitz-style/walletcore/internal/accountstore"
	"github.com/airbitz-style/walletcore/internal/broadcast"
	"github.com/airbitz-style/walletcore/internal/config"
	"github.com/airbitz-style/walletcore/internal/feeestimator"
	"github.com/airbitz-style/walletcore/internal/feeinfo"
	"github.com/airbitz-style/walletcore/internal/ffi"
	"github.com/airbitz-style/walletcore/internal/generalinfo"
	"github.com/airbitz-style/walletcore/internal/sendpipeline"
	"github.com/airbitz-style/walletcore/internal/statushub"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

func main() {
	log.Println("Starting walletcore...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	acctServer := accountserver.New(cfg.AccountServerURL)
	store := accountstore.New(cfg.DataDir, acctServer)

	infoClient := generalinfo.New(cfg.GeneralInfoURL)
	fees := feeinfo.New(cfg.DataDir+"/fee-cache.json", cfg.FeeCacheStaleAfter, infoClient.Fetch)

	var endpoints []broadcast.Endpoint
	for i, url := range cfg.BroadcastEndpoints {
		endpoints = append(endpoints, broadcast.NewHTTPEndpoint(endpointName(i), url))
	}
	dispatch := broadcast.NewDispatcher(endpoints...)

	recorder := sendpipeline.NewFileRecorder(cfg.DataDir + "/transactions")
	pipeline := sendpipeline.New(fees, dispatch, recorder, cfg.Net)

	hub := statushub.NewHub()
	go hub.Run()
	pipeline.SetObserver(hub)

	core := ffi.New(store, pipeline, fees, cfg.Net)
	if code := core.Initialize(context.Background()); code != walleterr.CodeOk {
		log.Fatalf("FATAL: walletcore failed to initialize (code %v)", code)
	}

	if cfg.FeeSampleDSN != "" {
		go runFeeEstimator(cfg)
	} else {
		log.Println("WALLETCORE_FEE_SAMPLE_DSN not set, stratum fee estimator disabled")
	}

	if cfg.DebugListenAddr == "" {
		log.Println("WALLETCORE_DEBUG_ADDR not set, debug HTTP surface disabled; blocking forever")
		select {}
	}

	r := setupDebugRouter(fees, hub)
	log.Printf("debug HTTP surface listening on %s", cfg.DebugListenAddr)
	if err := r.Run(cfg.DebugListenAddr); err != nil {
		log.Fatalf("FATAL: debug HTTP server exited: %v", err)
	}
}

// runFeeEstimator connects to the stratum fee-sample database and logs
// whether the currently persisted samples are stale. It does not poll the
// actual stratum servers itself: that bridge lives outside this module's
// scope (spec.md §6), this only tracks staleness of whatever last updated
// the table.
func runFeeEstimator(cfg config.Config) {
	ctx := context.Background()
	pgStore, err := feeestimator.Connect(ctx, cfg.FeeSampleDSN)
	if err != nil {
		log.Printf("Warning: fee sample database unavailable, stratum estimator disabled: %v", err)
		return
	}
	defer pgStore.Close()
	if err := pgStore.InitSchema(ctx); err != nil {
		log.Printf("Warning: fee sample schema init failed: %v", err)
		return
	}

	estimator := feeestimator.New(pgStore, cfg.FeeCacheRefreshInterval)
	ticker := time.NewTicker(cfg.FeeCacheRefreshInterval)
	defer ticker.Stop()
	for {
		need, err := estimator.NeedsUpdate(ctx)
		if err != nil {
			log.Printf("Warning: fee sample staleness check failed: %v", err)
		} else if need {
			log.Println("stratum fee samples are stale; waiting for an external update")
		}
		<-ticker.C
	}
}

func setupDebugRouter(fees *feeinfo.Cache, hub *statushub.Hub) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/fee-cache/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"lastRefreshed": fees.LastRefreshed(),
		})
	})

	r.GET("/ws", hub.Subscribe)

	return r
}

func endpointName(i int) string {
	return fmt.Sprintf("broadcast-%d", i)
}
