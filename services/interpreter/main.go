// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
	"github.com/AleutianAI/Kodiak/services/interpreter/routes"
	"github.com/AleutianAI/Kodiak/services/interpreter/service"
	"github.com/AleutianAI/Kodiak/services/interpreter/store"
	"github.com/AleutianAI/Kodiak/services/llm"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "kodiak-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("interpreter-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func newLLMClient() (llm.Client, error) {
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		slog.Info("Using OpenAI generation backend")
		return llm.NewOpenAIClient()
	case "claude", "anthropic", "":
		slog.Info("Using Anthropic (Claude) generation backend")
		return llm.NewAnthropicClient()
	default:
		slog.Warn("LLM_BACKEND_TYPE invalid, defaulting to Anthropic")
		return llm.NewAnthropicClient()
	}
}

func main() {
	port := os.Getenv("KODIAK_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	venvPath := os.Getenv("KODIAK_VENV")
	if venvPath == "" {
		venvPath = "/app/venv"
	}
	dataDir := os.Getenv("KODIAK_DATA_DIR")
	if dataDir == "" {
		dataDir = "/app/data"
	}

	archive, err := store.Open(store.DefaultConfig(dataDir + "/sessions"))
	if err != nil {
		log.Fatalf("FATAL: Could not open the session archive: %v", err)
	}
	defer archive.Close()

	log.Println("Configuring the generation backend")
	client, err := newLLMClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	svc, err := service.New(service.Config{
		Environment:   engine.NewVenvEnvironment(venvPath, logger),
		Generator:     client,
		Archive:       archive,
		TranscriptDir: dataDir + "/logs",
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to initialize interpreter service: %v", err)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("interpreter-service"))

	routes.SetupRoutes(router, svc)
	log.Println("started up the container")

	log.Println("Starting the interpreter server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
