package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ammforge/dfc/internal/config"
	"github.com/ammforge/dfc/internal/controller"
	"github.com/ammforge/dfc/internal/engine"
	"github.com/ammforge/dfc/internal/logger"
	"github.com/ammforge/dfc/internal/state"
	"github.com/ammforge/dfc/internal/web"
)

// main is the entry point for the dynamic fee controller service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("DFC Core Logic Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Hydrate Durable State ---
	params, err := state.LoadAllActiveFeeParams()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load fee parameters")
	}
	if _, ok := params[config.DefaultCategory]; !ok {
		log.Warn().Msg("No active default fee parameters found, using defaults and saving.")
		defaultParams := config.DefaultFeeParams
		if _, err := state.SaveFeeParams(defaultParams, config.DefaultCategory, 1, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default fee parameters.")
		}
		params[config.DefaultCategory] = defaultParams
	}
	log.Info().Int("categories", len(params)).Msg("Fee parameters loaded successfully.")

	poolStates, err := state.LoadAllPoolStates()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pool fee states")
	}

	// --- 3. Fee Sink Initialization ---
	sink, err := engine.NewClient(config.EngineURL, config.EngineTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize engine client")
	}
	defer sink.Close()
	log.Info().Str("endpoint", config.EngineURL).Msg("Engine client initialized")

	// --- 4. Create Controller Instance with Dependency Injection ---
	ctrl, err := controller.New(controller.Config{
		Store:      state.NewControllerStore(),
		FeeSink:    sink,
		AccessGate: controller.NewAllowlistGate(config.AllowedCallers),
		Params:     params,
		PoolStates: poolStates,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fee controller")
	}

	// --- 5. Serve ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, ctrl)
	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting DFC API server")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
