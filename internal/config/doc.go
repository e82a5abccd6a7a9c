// Package config provides the configuration of a varnisher run.
// It defines the cache proxy address, crawl and purge settings, logging
// options and report preferences, and loads them from the .varnishrc file.
package config
