// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

type Config struct {
	Version string

	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"baseUrl"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	TMDBAPIKey string `mapstructure:"tmdbApiKey"`

	// Worker container provisioning.
	DockerImage     string `mapstructure:"dockerImage"`
	DockerNetwork   string `mapstructure:"dockerNetwork"`
	RcloneConfigDir string `mapstructure:"rcloneConfigDir"`

	// Index sites used by the search endpoints.
	SearchSiteFR   string `mapstructure:"searchSiteFr"`
	SearchSiteEN   string `mapstructure:"searchSiteEn"`
	MaxSearchPages int    `mapstructure:"maxSearchPages"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	PprofEnabled bool `mapstructure:"pprofEnabled"`
}
