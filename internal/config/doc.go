// Package config loads glyphcaster's settings.
//
// Settings come from layers, each overriding the ones below it:
//
//	┌─────────────────────────────┐
//	│  4. Overrides (flags)       │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← GLYPHCASTER_LOG_LEVEL=debug
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/glyphcaster/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The file is TOML and may pull in other files with a top-level "@include"
// key. Environment variables map to dotted paths: the first word after the
// prefix is the section, the rest is the camelCase key, so
// GLYPHCASTER_STORAGE_DATA_DIR sets storage.dataDir.
//
// # Example
//
//	[log]
//	level = "debug"
//
//	[storage]
//	dataDir = "/var/lib/glyphcaster"
//
//	[peer]
//	listen = ":7420"
//	connect = ["10.0.0.2:7420"]
//
//	[document]
//	key = "content"
//
// # Usage
//
//	cfg, err := config.Load(config.WithFile(path))
//	if err != nil {
//		return err
//	}
//	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
package config
