// Package config provides configuration structures and utilities for scrollcrawl.
//
// Two layers exist:
//   - Config: process-level settings (which sink, frontier queue and renderer
//     to wire, credentials, report output), built from flags, SCROLLCRAWL_*
//     environment variables and an optional config file through viper.
//   - Site: one crawl target, loaded from the YAML sites file. A "defaults"
//     block in the file is merged into every site before validation.
//
// Credentials are never part of either file. The configuration only names the
// environment variables (ELASTIC_PASSWORD, ELASTIC_API_KEY, ELASTIC_CLOUD_ID,
// REDIS_PASSWORD by default) and ResolveCredentials reads their values.
package config
