package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/server"
	"github.com/memoraai/memora/server/ai"
	"github.com/memoraai/memora/server/service/memory"
	"github.com/memoraai/memora/store"
	"github.com/memoraai/memora/store/db"
)

const (
	greetingBanner = `Memora - memory-augmented question answering`
)

var (
	rootCmd = &cobra.Command{
		Use:   "memora",
		Short: "A memory-augmented question answering service",
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:    viper.GetString("mode"),
				Addr:    viper.GetString("addr"),
				Port:    viper.GetInt("port"),
				Version: version,
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid configuration", "error", err)
				os.Exit(1)
			}
			setupLogger(instanceProfile)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			driver, err := db.NewDriver(instanceProfile)
			if err != nil {
				slog.Error("failed to create store driver", "error", err)
				os.Exit(1)
			}
			memoryStore := store.New(driver, instanceProfile)

			provider, err := ai.NewProvider(&ai.Config{
				BaseURL:        instanceProfile.AIBaseURL,
				APIKey:         instanceProfile.AIAPIKey,
				EmbeddingModel: instanceProfile.AIEmbeddingModel,
				ChatModel:      instanceProfile.AIChatModel,
			})
			if err != nil {
				slog.Error("failed to create AI provider", "error", err)
				os.Exit(1)
			}
			validateCtx, validateCancel := context.WithTimeout(ctx, 30*time.Second)
			if err := provider.Validate(validateCtx); err != nil {
				validateCancel()
				slog.Error("AI provider validation failed", "error", err)
				os.Exit(1)
			}
			validateCancel()

			memoryService := memory.NewService(instanceProfile, memoryStore, provider, provider)
			s, err := server.NewServer(ctx, instanceProfile, memoryStore, memoryService)
			if err != nil {
				slog.Error("failed to create server", "error", err)
				os.Exit(1)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				slog.Info("shutting down")
				s.Shutdown(ctx)
				cancel()
			}()

			printGreetings(instanceProfile)
			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				cancel()
				os.Exit(1)
			}
		},
	}

	version = "0.1.0"
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8080)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address of the server")
	rootCmd.PersistentFlags().Int("port", 8080, "binding port of the server")

	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("memora")
	viper.AutomaticEnv()
}

func setupLogger(instanceProfile *profile.Profile) {
	var handler slog.Handler
	if instanceProfile.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(instanceProfile *profile.Profile) {
	fmt.Println(greetingBanner)
	fmt.Printf("version %s, mode %s, driver %s\n", instanceProfile.Version, instanceProfile.Mode, instanceProfile.Driver)
	fmt.Printf("listening on %s:%d\n", instanceProfile.Addr, instanceProfile.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", "error", err)
		os.Exit(1)
	}
}
