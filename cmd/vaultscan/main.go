// vaultscan scans a directory of files against a persistent hash
// catalog and prints what changed since the last run.
//
//	vaultscan [-config loreweave.yaml] <dir>
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	catalogPath := flag.String("catalog", ".loreweave-catalog", "hash catalog directory")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vaultscan [-config file] [-catalog dir] <dir>")
		os.Exit(2)
	}
	root := flag.Arg(0)

	var cfg loreweave.Config
	if *configPath != "" {
		loaded, err := loreweave.LoadConfig(*configPath)
		if err != nil {
			logrus.Fatal(err)
		}
		cfg = loaded
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = *catalogPath
	}

	engine, err := loreweave.New(cfg)
	if err != nil {
		logrus.Fatal(err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == filepath.Base(cfg.CatalogPath) {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		logrus.Fatal(err)
	}

	cs, err := engine.ScanFiles(ctx, paths)
	if err != nil {
		logrus.Fatal(err)
	}

	fmt.Printf("scanned %d files: %d unchanged, %d changed, %d new, %d deleted\n",
		len(paths), len(cs.Unchanged), len(cs.Changed), len(cs.New), len(cs.Deleted))
	for _, f := range cs.Changed {
		fmt.Printf("  changed  %s\n", f.Path)
	}
	for _, f := range cs.New {
		fmt.Printf("  new      %s\n", f.Path)
	}
	for _, p := range cs.Deleted {
		fmt.Printf("  deleted  %s\n", p)
	}

	if err := engine.CommitChanges(cs); err != nil {
		logrus.Fatal(err)
	}

	stats, quota := engine.Stats()
	fmt.Printf("store: %d blocks, %d trees, %d bytes used of %d\n",
		stats.BlockCount, stats.TreeCount, quota.Used, quota.Limit)
}
