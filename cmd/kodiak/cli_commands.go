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
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/Kodiak/pkg/ux"
	"github.com/AleutianAI/Kodiak/services/interpreter/routes"
)

var (
	rootCmd = &cobra.Command{
		Use:   "kodiak",
		Short: "A CLI that turns natural-language requests into executed Python",
		Long: `Kodiak generates Python code for a request, installs what the code
needs, runs it in an isolated process, and repairs it from its own
errors - all on your machine.`,
	}

	noExecute  bool
	savePath   string
	maxRepairs int

	runCmd = &cobra.Command{
		Use:   "run [request]",
		Short: "Generate code for a request and run it with automatic repair",
		Long: `Sends the request to the generation backend, executes the resulting
script in the configured virtualenv, and retries with repaired versions when
execution fails.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runRunCommand,
	}

	execCmd = &cobra.Command{
		Use:   "exec [file]",
		Short: "Run an existing Python file through the repair loop",
		Args:  cobra.ExactArgs(1),
		Run:   runExecCommand,
	}

	interactiveCmd = &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive request loop",
		Run:   runInteractiveCommand,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the interpreter HTTP API",
		Run:   runServeCommand,
	}

	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Inspect archived interpreter sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List archived sessions",
		Run:   runListSessionsCommand,
	}
	showSessionCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show one archived session in full",
		Args:  cobra.ExactArgs(1),
		Run:   runShowSessionCommand,
	}
	deleteSessionCmd = &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete an archived session",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteSessionCommand,
	}
)

func init() {
	runCmd.Flags().BoolVar(&noExecute, "no-execute", false,
		"Generate and print the code without running it")
	runCmd.Flags().StringVar(&savePath, "save", "",
		"Save the final code to this path")
	runCmd.Flags().IntVar(&maxRepairs, "max-repairs", 0,
		"Override the repair budget for this run (0 uses the configured value)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(listSessionsCmd)
	sessionCmd.AddCommand(showSessionCmd)
	sessionCmd.AddCommand(deleteSessionCmd)
}

// signalContext returns a context cancelled by Ctrl-C, so a running script
// is killed and the session sealed instead of orphaning the child process.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRunCommand(cmd *cobra.Command, args []string) {
	request := strings.Join(args, " ")
	ctx, cancel := signalContext()
	defer cancel()

	if noExecute {
		backend, err := newBackend()
		if err != nil {
			ux.Error(err.Error())
			os.Exit(1)
		}
		generated, err := backend.GenerateCode(ctx, request)
		if err != nil {
			ux.Error("generation failed: " + err.Error())
			os.Exit(1)
		}
		ux.Code(generated.Code)
		if generated.Explanation != "" {
			ux.Muted(generated.Explanation)
		}
		saveSource(generated.Code)
		return
	}

	svc, archive, err := buildService(maxRepairs)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer archive.Close()

	session, err := svc.Interpret(ctx, request)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	printSession(session)
	saveSource(session.FinalSource())
}

func runExecCommand(cmd *cobra.Command, args []string) {
	source, err := os.ReadFile(args[0])
	if err != nil {
		ux.Error("cannot read " + args[0] + ": " + err.Error())
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	svc, archive, err := buildService(0)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer archive.Close()

	session, err := svc.Execute(ctx, string(source))
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	printSession(session)
}

func runInteractiveCommand(cmd *cobra.Command, args []string) {
	if !ux.IsInteractive() {
		ux.Error("interactive mode requires a terminal")
		os.Exit(1)
	}

	svc, archive, err := buildService(0)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer archive.Close()

	ux.Title("Kodiak interactive mode")
	ux.Muted("Describe a task and Kodiak will write and run the Python for it.")
	ux.Muted("Type 'exit' to leave.")

	for {
		var request string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("What should I do?").
				Value(&request),
		))
		if err := form.Run(); err != nil {
			// Ctrl-C inside the prompt ends the loop cleanly.
			return
		}

		request = strings.TrimSpace(request)
		switch strings.ToLower(request) {
		case "", "exit", "quit":
			return
		}

		ctx, cancel := signalContext()
		session, err := svc.Interpret(ctx, request)
		cancel()
		if err != nil {
			ux.Error(err.Error())
			continue
		}
		printSession(session)
	}
}

func runServeCommand(cmd *cobra.Command, args []string) {
	svc, archive, err := buildService(0)
	if err != nil {
		log.Fatalf("Failed to initialize interpreter service: %v", err)
	}
	defer archive.Close()

	router := gin.Default()
	routes.SetupRoutes(router, svc)

	port := config.ServerPort
	log.Println("Starting the interpreter server on port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runListSessionsCommand(cmd *cobra.Command, args []string) {
	archive, err := openArchive()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer archive.Close()

	ctx, cancel := signalContext()
	defer cancel()

	summaries, err := archive.List(ctx)
	if err != nil {
		ux.Error("failed to list sessions: " + err.Error())
		os.Exit(1)
	}
	if len(summaries) == 0 {
		ux.Muted("No archived sessions.")
		return
	}

	for _, s := range summaries {
		line := fmt.Sprintf("%s  %-10s  %d attempt(s)  %s",
			s.StartedAt.Format("2006-01-02 15:04"), s.Status, s.Attempts, s.ID)
		fmt.Println(line)
		if s.Request != "" {
			ux.Muted("    " + s.Request)
		}
	}
}

func runShowSessionCommand(cmd *cobra.Command, args []string) {
	archive, err := openArchive()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer archive.Close()

	ctx, cancel := signalContext()
	defer cancel()

	session, err := archive.Get(ctx, args[0])
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	printSessionDetail(session)
}

func runDeleteSessionCommand(cmd *cobra.Command, args []string) {
	archive, err := openArchive()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer archive.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := archive.Delete(ctx, args[0]); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success("deleted session " + args[0])
}

// saveSource writes source to --save's path when the flag was given.
func saveSource(source string) {
	if savePath == "" || source == "" {
		return
	}
	if err := os.WriteFile(savePath, []byte(source), 0644); err != nil {
		ux.Error("failed to save code: " + err.Error())
		return
	}
	ux.Success("saved code to " + savePath)
}
