// Command localize is the administrative companion of the engine: it seeds
// translation records from go-i18n message files and resolves single keys
// for inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pitabwire/util"

	"github.com/shredbx/localize"
	"github.com/shredbx/localize/config"
	"github.com/shredbx/localize/translation"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		exitOnErr(cmdSeed(os.Args[2:]))
	case "resolve":
		exitOnErr(cmdResolve(os.Args[2:]))
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stdout, "localize <command> [args]")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Commands:")
	fmt.Fprintln(os.Stdout, "  seed    [--config FILE] [--namespace NS] [--dir DIR]")
	fmt.Fprintln(os.Stdout, "  resolve [--config FILE] --namespace NS --field FIELD --locale LOCALE")
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Localization, error) {
	if path != "" {
		return config.FromYAMLFile[config.Localization](path)
	}
	return config.FromEnv[config.Localization]()
}

func cmdSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "yaml configuration file")
	namespace := fs.String("namespace", "content-dictionary", "namespace to seed into")
	dir := fs.String("dir", "", "directory of messages.<locale>.toml files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dir == "" {
		*dir = cfg.SeedPath
	}

	ctx := context.Background()
	engine, err := localize.New(ctx, &cfg)
	if err != nil {
		return err
	}
	defer engine.Stop(ctx)

	count, err := engine.Seeder(*namespace).SeedDir(ctx, *dir)
	if err != nil {
		return err
	}

	util.Log(ctx).WithField("records", count).WithField("namespace", *namespace).
		Info("seeding complete")
	return nil
}

func cmdResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configPath := fs.String("config", "", "yaml configuration file")
	namespace := fs.String("namespace", "", "key namespace")
	field := fs.String("field", "", "key field")
	locale := fs.String("locale", "", "requested locale")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	engine, err := localize.New(ctx, &cfg)
	if err != nil {
		return err
	}
	defer engine.Stop(ctx)

	if *locale == "" {
		*locale = cfg.BaseLocale
	}

	resolved, err := engine.Resolve(ctx, translation.NewKey(*namespace, *field, engine.MatchLocale(*locale)))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s (%s, v%d)\n", resolved.Value, resolved.Source, resolved.Version)
	return nil
}
