package config

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sohnjk/docspace/internal/platform/web"
)

var configFileName string
var configFilePath string

func SetConfig(goEnv string) {
	log.Info().Msgf("Loading configuration for environment: %s", goEnv)

	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")

	if goEnv == "production" {
		configFileName = "config.prod"
	} else {
		configFileName = "config.dev"
	}
	viper.SetConfigName(configFileName)

	err := viper.ReadInConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read config file")
	}

	configFilePath = viper.ConfigFileUsed()
	log.Info().Msgf("Config file loaded: %s", configFilePath)

	err = viper.Unmarshal(&Conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to unmarshal config")
	}

	applyDefaults()
}

func applyDefaults() {
	if Conf.Server.Port <= 0 {
		Conf.Server.Port = 3000
	}
	if Conf.Share.LinkTTLDays <= 0 {
		Conf.Share.LinkTTLDays = 30
	}
	if Conf.Worker.Count <= 0 {
		Conf.Worker.Count = 2
	}
	if Conf.Worker.MaxRetries <= 0 {
		Conf.Worker.MaxRetries = 3
	}
}

// SaveConfig writes the current configuration back to the YAML file.
func SaveConfig() error {
	data, err := yaml.Marshal(&Conf)
	if err != nil {
		return err
	}

	err = os.WriteFile(configFilePath, data, 0644)
	if err != nil {
		return err
	}

	log.Info().Msgf("Configuration saved to %s", configFilePath)
	return nil
}

type Handler struct{}

type PublicConfigResponse struct {
	Server Server `json:"server"`
	Share  Share  `json:"share"`
}

type UpdateConfigRequest struct {
	Server Server `json:"server"`
	Share  Share  `json:"share"`
}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/config", web.Handler(h.GetConfig))
	mux.Handle("PUT /api/config", web.Handler(h.UpdateConfig))
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) *web.Error {
	w.Header().Set("Content-Type", "application/json")
	response := PublicConfigResponse{
		Server: Conf.Server,
		Share:  Conf.Share,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		return &web.Error{Err: err, Code: http.StatusInternalServerError, Message: "Failed to encode config"}
	}
	return nil
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) *web.Error {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Err: err, Code: http.StatusBadRequest, Message: "Invalid config format"}
	}

	if req.Server.Port <= 0 || req.Server.Port > 65535 {
		return &web.Error{Code: http.StatusBadRequest, Message: "server.port must be between 1 and 65535"}
	}
	if req.Share.LinkTTLDays < 0 {
		return &web.Error{Code: http.StatusBadRequest, Message: "share.link_ttl_days must not be negative"}
	}

	// Datasource, storage and cloud settings carry secrets and paths; they
	// are file-only and never updated over the API.
	Conf.Server = req.Server
	if req.Share.LinkTTLDays > 0 {
		Conf.Share.LinkTTLDays = req.Share.LinkTTLDays
	}

	if err := SaveConfig(); err != nil {
		return &web.Error{Err: err, Code: http.StatusInternalServerError, Message: "Failed to save config"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Configuration updated successfully",
	})
	return nil
}
