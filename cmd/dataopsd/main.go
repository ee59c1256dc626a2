// Command dataopsd is the composition root for the data-access layer:
// it loads the storage configuration file, wires a daofactory.Registry
// against it, and reports per-backend connectivity. It deliberately
// stops there — the RPC transport (line-delimited JSON/websocket,
// spec.md §6) and any config-file-watching daemon loop are external
// collaborators out of scope here (spec.md §1/§9); this binary is
// enough to prove the wiring compiles and the configured backends are
// reachable, not a running service.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"go.dataops.dev/daofactory"
	"go.dataops.dev/dconfig"
	"go.dataops.dev/dlog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "health":
		health()
	case "storages":
		storages()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: dataopsd <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  storages   List the storage bindings named in the config file")
	fmt.Println("  health     Connect to every configured storage and report its status")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  DATAOPS_CONFIG_PATH   Path to the storage configuration file (default: ./storage_config.yaml)")
}

func configPath() string {
	if p := os.Getenv("DATAOPS_CONFIG_PATH"); p != "" {
		return p
	}
	return "./storage_config.yaml"
}

func loadConfig() *dconfig.StorageConfigFile {
	log := dlog.For("dataopsd")
	path := configPath()
	cfg, err := dconfig.LoadStorageConfigFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Fatal("failed to load storage configuration")
	}
	return cfg
}

func storages() {
	cfg := loadConfig()
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tHOST\tDATABASE")
	for name, bc := range cfg.StorageConfigs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, bc.Kind, bc.Host, bc.Database)
	}
	w.Flush()
}

func health() {
	cfg := loadConfig()
	registry := daofactory.NewRegistry(nil)
	ctx := context.Background()

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS")
	failures := 0
	for name, bc := range cfg.StorageConfigs {
		log := dlog.ForStorage("dataopsd", name)
		binding := bc.ToBinding()
		d, err := registry.Resolve(ctx, binding, name)
		if err != nil {
			log.WithError(err).Warn("failed to resolve storage")
			fmt.Fprintf(w, "%s\tunreachable: %v\n", name, err)
			failures++
			continue
		}
		if err := d.Health(ctx); err != nil {
			log.WithError(err).Warn("storage health check failed")
			fmt.Fprintf(w, "%s\tunhealthy: %v\n", name, err)
			failures++
			continue
		}
		fmt.Fprintf(w, "%s\tok\n", name)
	}
	w.Flush()
	if failures > 0 {
		os.Exit(1)
	}
}
