package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"github.com/cepro/hubdispatch/config"
	"github.com/cepro/hubdispatch/dataplatform"
	"github.com/cepro/hubdispatch/network"
	"github.com/cepro/hubdispatch/problem"
	"github.com/cepro/hubdispatch/repository"
	"github.com/cepro/hubdispatch/results"
	"github.com/cepro/hubdispatch/solver"
	"github.com/cepro/hubdispatch/solver/simplex"
)

func main() {

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "scenario.json", "path to the scenario JSON file")
	dbPath := flag.String("db", "runs.sqlite", "path to the local run store")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.Info("Starting dispatch run...", "config", *configPath)

	cfg, err := config.Read(*configPath)
	if err != nil {
		slog.Error("Failed to read scenario", "error", err)
		os.Exit(1)
	}

	net, err := network.Build(cfg, cfg.Selection)
	if err != nil {
		slog.Error("Failed to build network", "error", err)
		os.Exit(1)
	}
	slog.Info(
		"Built network",
		"hours", net.Hours,
		"generators", len(net.Generators),
		"links", len(net.Links),
		"storage", len(net.Storage),
		"heat_pump_families", len(net.HeatPumps),
	)

	prob, err := problem.Formulate(net)
	if err != nil {
		slog.Error("Failed to formulate problem", "error", err)
		os.Exit(1)
	}
	slog.Info(
		"Formulated problem",
		"variables", len(prob.Vars),
		"constraints", len(prob.Constraints),
		"mip", prob.MIP(),
	)

	orchestrator := solver.NewOrchestrator(simplex.New(), simplex.New())
	sol, err := orchestrator.Solve(ctx, prob, cfg.Solvers)
	if err != nil {
		var failure *solver.Failure
		if errors.As(err, &failure) && failure.Infeasible() {
			slog.Error("No feasible dispatch found for this portfolio", "attempts", failure.Error())
		} else {
			slog.Error("All solve attempts failed", "error", err)
		}
		os.Exit(1)
	}

	resultSet, err := results.Extract(net, prob, sol)
	if err != nil {
		slog.Error("Failed to extract results", "error", err)
		os.Exit(1)
	}

	slog.Info("Optimization successful", "objective", resultSet.Objective)
	for name, flow := range resultSet.LinkFlows {
		maxInput := 0.0
		for _, v := range flow.Input {
			if v > maxInput {
				maxInput = v
			}
		}
		slog.Info("Converter utilisation", "link", name, "max_input_power", maxInput)
	}

	run := results.Run{
		ID:        uuid.New(),
		Time:      time.Now(),
		Status:    sol.Status.String(),
		ResultSet: resultSet,
	}

	supabaseUrl := os.Getenv("HUB_SUPABASE_URL")
	supabaseKey := os.Getenv("HUB_SUPABASE_KEY")
	if supabaseUrl != "" && supabaseKey != "" {
		schema := os.Getenv("HUB_SUPABASE_SCHEMA")
		if schema == "" {
			schema = "public"
		}
		platform, err := dataplatform.New(supabaseUrl, supabaseKey, schema, *dbPath)
		if err != nil {
			slog.Error("Failed to create data platform", "error", err)
			os.Exit(1)
		}
		if err := platform.Store(run); err != nil {
			slog.Error("Failed to store run", "error", err)
			os.Exit(1)
		}
		platform.AttemptUpload()
	} else {
		repo, err := repository.New(*dbPath)
		if err != nil {
			slog.Error("Failed to open run store", "error", err)
			os.Exit(1)
		}
		if err := repo.AddRun(run); err != nil {
			slog.Error("Failed to store run", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Run stored", "run_id", run.ID)
}
