package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/egosim/internal/results"
	"github.com/GoSim-25-26J-441/egosim/internal/simd"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation daemon (HTTP and gRPC)",
		Long: `Serve the run API over HTTP and gRPC. Clients submit a configuration,
start and stop runs, and read results. Finished runs can post a callback.

Examples:
  egosim serve
  egosim serve --http-addr :9090 --results-dir results --archive results/archive.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			grpcAddr, _ := cmd.Flags().GetString("grpc-addr")
			httpAddr, _ := cmd.Flags().GetString("http-addr")
			resultsDir, _ := cmd.Flags().GetString("results-dir")
			format, _ := cmd.Flags().GetString("format")
			archivePath, _ := cmd.Flags().GetString("archive")
			callbacks, _ := cmd.Flags().GetBool("callbacks")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := simd.NewRunStore()
			executor := simd.NewRunExecutor(store)
			if callbacks {
				executor.SetNotifier(simd.NewNotifier())
			}
			daemonMetrics := simd.NewDaemonMetrics(store)
			executor.SetMetrics(daemonMetrics)

			var writers results.Multi
			if resultsDir != "" {
				fw, err := results.NewFileWriter(resultsDir, format)
				if err != nil {
					return err
				}
				writers = append(writers, fw)
			}
			if archivePath != "" {
				archive, err := results.OpenArchive(archivePath)
				if err != nil {
					return err
				}
				defer archive.Close()
				writers = append(writers, archive)
			}
			if len(writers) > 0 {
				executor.SetWriter(writers)
			}

			// TODO: Configure gRPC server security (e.g., TLS, authentication)
			// before exposing the daemon outside a trusted network.
			grpcServer := grpc.NewServer()
			simd.RegisterSimulationServiceServer(grpcServer, simd.NewSimulationGRPCServer(store, executor))

			grpcLis, err := net.Listen("tcp", grpcAddr)
			if err != nil {
				logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
				return err
			}

			api := simd.NewHTTPServer(store, executor)
			api.HandleMetrics(daemonMetrics.Handler())

			httpSrv := &http.Server{
				Addr:              httpAddr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
				MaxHeaderBytes:    1 << 20,
			}

			go func() {
				logger.Info("gRPC server listening", "addr", grpcAddr)
				if err := grpcServer.Serve(grpcLis); err != nil {
					logger.Error("gRPC server error", "error", err)
					stop()
				}
			}()

			go func() {
				logger.Info("HTTP server listening", "addr", httpAddr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server error", "error", err)
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutdown requested")
			stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			grpcServer.GracefulStop()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown error", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().String("grpc-addr", ":50051", "gRPC listen address")
	cmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	cmd.Flags().String("results-dir", "", "Also write every result bundle to this directory")
	cmd.Flags().String("format", results.FormatJSON, "Encoding for --results-dir (json, msgpack)")
	cmd.Flags().String("archive", "", "Also store every result bundle in this archive")
	cmd.Flags().Bool("callbacks", true, "Post completion callbacks for runs that request one")
	return cmd
}
