// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenVZ/vcmmd/pkg/idlemem"
	logger "github.com/OpenVZ/vcmmd/pkg/log"
	"github.com/OpenVZ/vcmmd/pkg/metrics"
	// pull in all metrics collectors, including idlemem's own.
	_ "github.com/OpenVZ/vcmmd/pkg/metrics/register"
	_ "github.com/OpenVZ/vcmmd/pkg/version"
)

var log = logger.NewLogger("idlescand")

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "idlescand: "+format+"\n", a...)
	os.Exit(1)
}

func main() {
	metricsAddr := flag.String("metrics-addr", ":9552", "address to serve /metrics and /healthz on")
	scanInterval := flag.Duration("scan-interval", 60*time.Second, "target wall-clock time for one full scan cycle")
	historySize := flag.Int("history-size", idlemem.DefaultHistorySize, "number of past cycles kept per cgroup for the EWMA gauge")

	flag.Parse()

	engine, err := idlemem.NewEngine(idlemem.EngineOptions{
		ScanInterval: *scanInterval,
	})
	if err != nil {
		exit("failed to start scan engine: %v", err)
	}
	defer engine.Close()

	history := idlemem.NewHistory(*historySize)
	idlemem.RegisterEngine(engine)
	idlemem.RegisterHistory(history)

	gatherer, err := metrics.NewMetricGatherer()
	if err != nil {
		exit("failed to set up metrics gatherer: %v", err)
	}

	var lastIterErr atomic.Value
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if v := lastIterErr.Load(); v != nil {
			if err, ok := v.(*idlemem.IoError); ok && err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "last scan failed: %v\n", err)
				return
			}
		}
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		log.Info("serving metrics on %s", *metricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server exited: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	log.Info("scanning %d iterations per cycle", engine.NrIters())

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			srv.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		default:
		}

		_, itersLeft, err := engine.Iter(ctx)
		if err != nil {
			if ioErr, ok := err.(*idlemem.IoError); ok {
				lastIterErr.Store(ioErr)
			}
			log.Error("scan iteration failed: %v", err)
			continue
		}
		lastIterErr.Store((*idlemem.IoError)(nil))

		if itersLeft == 0 {
			result, err := engine.Result(ctx)
			if err != nil {
				log.Error("failed to read scan result: %v", err)
				continue
			}
			history.Update(result)
			log.Info("cycle complete: %d cgroups reported, last cycle took %s",
				len(result), engine.LastCycleDuration())
		}
	}
}
